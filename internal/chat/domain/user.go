package domain

// User 由 account service 擁有, 這裡只讀
type User struct {
	ID          string `bson:"_id" json:"id"`
	Username    string `bson:"username" json:"username"`
	DisplayName string `bson:"display_name" json:"displayName"`
	Avatar      string `bson:"avatar,omitempty" json:"avatar,omitempty"`
}
