package queue

// Message attributes set by the router on every enqueued context object.
const (
	AttrConversationID = "conversation_id"
	AttrChannelMethod  = "channel_method"
	AttrCompanyID      = "company_id"
)

// ReceiveCountAttr is the SQS system attribute carrying the delivery count.
const ReceiveCountAttr = "ApproximateReceiveCount"
