package models

// AccountQuery represents filters and pagination for listing accounts.
type AccountQuery struct {
	Platform string `json:"platform,omitempty"`
	Status   Status `json:"status,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
	OrderBy  string `json:"order_by,omitempty"`
	OrderAsc bool   `json:"order_asc,omitempty"`
}

// Account sort fields. The default is creation order.
const (
	AccountOrderCreated   = "created_at"
	AccountOrderFollowers = "stats_followers"
	AccountOrderMedias    = "stats_medias"
	AccountOrderViews     = "stats_views"
)

// Validate applies defaults and rejects unknown filter values.
func (q *AccountQuery) Validate() error {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if q.Limit > 1000 {
		q.Limit = 1000
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.Status != "" && !q.Status.Valid() {
		return ErrInvalidConfig
	}
	switch q.OrderBy {
	case "", AccountOrderCreated, AccountOrderFollowers, AccountOrderMedias, AccountOrderViews:
	default:
		return ErrInvalidConfig
	}
	if q.OrderBy == "" {
		q.OrderBy = AccountOrderCreated
	}
	return nil
}

// MediaQuery represents filters and pagination for listing medias.
type MediaQuery struct {
	AccountID int64  `json:"account_id,omitempty"`
	Status    Status `json:"status,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
	OrderBy   string `json:"order_by,omitempty"`
	OrderAsc  bool   `json:"order_asc,omitempty"`
}

// Media sort fields.
const (
	MediaOrderCreated  = "created_at"
	MediaOrderLikes    = "stats_likes"
	MediaOrderComments = "stats_comments"
	MediaOrderViews    = "stats_views"
)

// Validate applies defaults and rejects unknown filter values.
func (q *MediaQuery) Validate() error {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if q.Limit > 1000 {
		q.Limit = 1000
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.Status != "" && !q.Status.Valid() {
		return ErrInvalidConfig
	}
	switch q.OrderBy {
	case "", MediaOrderCreated, MediaOrderLikes, MediaOrderComments, MediaOrderViews:
	default:
		return ErrInvalidConfig
	}
	if q.OrderBy == "" {
		q.OrderBy = MediaOrderCreated
	}
	return nil
}
