package parser

// Kind classifies a message body.
type Kind string

const (
	KindCreate Kind = "create"
	KindUpdate Kind = "update"
	KindIgnore Kind = "ignore"
)

// Action identifies the update mutation requested by the sender.
type Action string

const (
	ActionMarkDelivered Action = "mark_delivered"
	ActionCollect       Action = "collect_payment"
	ActionMarkFailed    Action = "mark_failed"
	ActionMarkPickup    Action = "mark_pickup"
	ActionMarkPending   Action = "mark_pending"
	ActionModify        Action = "modify"
	ActionChangePhone   Action = "change_phone"
)

// Create carries the extracted fields of a new delivery announcement.
type Create struct {
	Phone     string
	Items     string
	AmountDue int64
	Quartier  string
	Carrier   string
}

// Update is the tagged mutation request. Phone is the phone extracted from
// the body, if any; the resolver may instead use a quoted message id.
type Update struct {
	Action    Action
	Phone     string
	Amount    *int64  // explicit payment amount (delivered, collect)
	Items     *string // modify
	AmountDue *int64  // modify
	OldPhone  string  // change_phone
	NewPhone  string  // change_phone
}

// Result is the parser output the pipeline dispatches on.
type Result struct {
	Kind   Kind
	Create *Create
	Update *Update
}

func ignore() Result {
	return Result{Kind: KindIgnore}
}
