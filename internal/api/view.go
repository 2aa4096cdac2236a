// view.go -- JSON shape of a flow as returned to the browser.
package api

import "github.com/MGallo-Code/wabalink/internal/connect"

// flowView is what the selection UI renders. The access token never leaves the
// server except inside opener_message on success.
type flowView struct {
	State             connect.State             `json:"state"`
	Message           string                    `json:"message,omitempty"`
	Groups            []connect.BusinessGroup   `json:"groups"`
	Selected          []string                  `json:"selected"`
	NeedsVerification bool                      `json:"needs_verification"`
	CanConfirm        bool                      `json:"can_confirm"`
	Error             *connect.FlowError        `json:"error,omitempty"`
	OpenerMessage     *connect.OpenerMessage    `json:"opener_message,omitempty"`
	Subscriptions     connect.SubscriptionBatch `json:"subscriptions,omitempty"`
}

func newFlowView(f *connect.Flow) flowView {
	v := flowView{
		State:             f.State,
		Message:           f.Message,
		Groups:            []connect.BusinessGroup{},
		Selected:          f.Selection.IDs(),
		NeedsVerification: f.NeedsVerification(),
		CanConfirm:        f.CanConfirm(),
		Error:             f.Error,
		OpenerMessage:     f.Opener,
		Subscriptions:     f.Subscriptions,
	}
	if f.Tree != nil {
		v.Groups = f.Tree.Groups
	}
	return v
}
