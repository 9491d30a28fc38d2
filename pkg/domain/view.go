package domain

// RouteStep is one answered question on the path to the current node.
type RouteStep struct {
	NodeID   string `json:"node_id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ResultView is a result node as seen by a particular caller.
type ResultView struct {
	Result
	Locked bool   `json:"locked"`
	Teaser string `json:"teaser,omitempty"`
}

// View is the render of a session: what to present for the current node.
type View struct {
	SessionID      string      `json:"session_id"`
	TreeID         string      `json:"tree_id"`
	TreeTitle      string      `json:"tree_title"`
	NodeID         string      `json:"node_id"`
	Kind           NodeKind    `json:"kind"`
	Question       *Question   `json:"question,omitempty"`
	Result         *ResultView `json:"result,omitempty"`
	Progress       float64     `json:"progress"`
	Answered       int         `json:"answered"`
	TotalQuestions int         `json:"total_questions"`
	CanGoBack      bool        `json:"can_go_back"`
	Route          []RouteStep `json:"route,omitempty"`
	Save           SaveStatus  `json:"save_status"`
	SaveError      string      `json:"save_error,omitempty"`
}

// Terminal reports whether the view presents a result.
func (v *View) Terminal() bool {
	return v.Kind == KindResult
}
