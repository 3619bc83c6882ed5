package instagram

// Media is a partial Graph media document with the counters we use
type Media struct {
	ID            string `json:"id"`
	LikeCount     int64  `json:"like_count"`
	CommentsCount int64  `json:"comments_count"`
}

type mediaPage struct {
	Data []Media `json:"data"`
}

// Account is the expanded business account document returned by FetchMetrics
type Account struct {
	ID             string     `json:"id"`
	Username       string     `json:"username"`
	AccountType    string     `json:"account_type"`
	FollowersCount int64      `json:"followers_count"`
	MediaCount     int64      `json:"media_count"`
	Media          *mediaPage `json:"media,omitempty"`
}

// RecentMedia returns the embedded media edge and whether it was present
func (a Account) RecentMedia() ([]Media, bool) {
	if a.Media == nil {
		return nil, false
	}
	return a.Media.Data, true
}

// Recipient addresses a message either to a user or, for private replies, to a comment
type Recipient struct {
	ID        string `json:"id,omitempty"`
	CommentID string `json:"comment_id,omitempty"`
}

type messageText struct {
	Text string `json:"text"`
}

type sendMessageBody struct {
	Recipient Recipient   `json:"recipient"`
	Message   messageText `json:"message"`
}

type replyBody struct {
	Message string `json:"message"`
}

type idResponse struct {
	ID        string `json:"id"`
	MessageID string `json:"message_id"`
}
