package httpdto

type SystemMessageRequest struct {
	Content string `json:"content"`
}
