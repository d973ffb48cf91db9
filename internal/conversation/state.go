package conversation

// StateKind names a conversation state.
type StateKind string

const (
	StateAwaitingLanguage     StateKind = "awaiting_language"
	StateMainMenu             StateKind = "main_menu"
	StateSubMenu              StateKind = "sub_menu"
	StateAwaitingOrderDetails StateKind = "awaiting_order_details"
	StateAwaitingName         StateKind = "awaiting_name"
	StateAwaitingPaymentProof StateKind = "awaiting_payment_proof"
	StateConfirmPayment       StateKind = "confirm_payment"
	StateCustomerService      StateKind = "customer_service"
	StateSubmitted            StateKind = "submitted"
	StateOrderInquiry         StateKind = "order_inquiry"
	StateConfirmCancel        StateKind = "confirm_cancel"
	StateAwaitingRating       StateKind = "awaiting_rating"
	StateAwaitingFeedback     StateKind = "awaiting_feedback"
)

// parameterized reports whether the kind carries a Param: the menu option
// path for SubMenu, the order id for the others.
func (k StateKind) parameterized() bool {
	switch k {
	case StateSubMenu, StateConfirmCancel, StateAwaitingRating, StateAwaitingFeedback:
		return true
	}
	return false
}

func (k StateKind) known() bool {
	switch k {
	case StateAwaitingLanguage, StateMainMenu, StateSubMenu, StateAwaitingOrderDetails,
		StateAwaitingName, StateAwaitingPaymentProof, StateConfirmPayment, StateCustomerService,
		StateSubmitted, StateOrderInquiry, StateConfirmCancel, StateAwaitingRating, StateAwaitingFeedback:
		return true
	}
	return false
}

// State is the position of one identity in the conversation.
type State struct {
	Kind  StateKind `json:"kind"`
	Param string    `json:"param,omitempty"`
}

// Valid reports whether s is a member of the closed state set: a known kind
// with a parameter exactly when the kind takes one.
func (s State) Valid() bool {
	if !s.Kind.known() {
		return false
	}
	return s.Kind.parameterized() == (s.Param != "")
}

func (s State) String() string {
	if s.Param == "" {
		return string(s.Kind)
	}
	return string(s.Kind) + "(" + s.Param + ")"
}

// clearsPayload reports whether entering s discards the pending payload.
func (s State) clearsPayload() bool {
	return s.Kind == StateMainMenu || s.Kind == StateSubmitted
}

func MainMenu() State                  { return State{Kind: StateMainMenu} }
func SubMenu(path string) State        { return State{Kind: StateSubMenu, Param: path} }
func ConfirmCancel(id string) State    { return State{Kind: StateConfirmCancel, Param: id} }
func AwaitingRating(id string) State   { return State{Kind: StateAwaitingRating, Param: id} }
func AwaitingFeedback(id string) State { return State{Kind: StateAwaitingFeedback, Param: id} }

// Payload is the data collected while an order or review is in progress.
type Payload struct {
	Lines       []string `json:"lines,omitempty"`
	FromCatalog bool     `json:"fromCatalog,omitempty"`
	Filling     string   `json:"filling,omitempty"`
	Name        string   `json:"name,omitempty"`
	OrderID     string   `json:"orderId,omitempty"`
	ProofRef    string   `json:"proofRef,omitempty"`
	Rating      int      `json:"rating,omitempty"`
	ReviewID    string   `json:"reviewId,omitempty"`
}

func (p Payload) clone() Payload {
	if p.Lines != nil {
		p.Lines = append([]string(nil), p.Lines...)
	}
	return p
}

// IsZero reports whether nothing has been collected.
func (p Payload) IsZero() bool {
	return len(p.Lines) == 0 && !p.FromCatalog && p.Filling == "" && p.Name == "" &&
		p.OrderID == "" && p.ProofRef == "" && p.Rating == 0 && p.ReviewID == ""
}
