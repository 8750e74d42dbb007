package models

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

type HealthResponse struct {
	Status      string `json:"status"`
	Clients     int    `json:"clients"`
	Rooms       int    `json:"rooms"`
	Messages    int    `json:"messages"`
	Connections int64  `json:"connections"`
	Uptime      string `json:"uptime"`
}
