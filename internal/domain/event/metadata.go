package event

import "time"

// Metadata is the request context an event was produced in.
type Metadata struct {
	UserID    string    `json:"user_id,omitempty"    bson:"user_id,omitempty"`
	RequestID string    `json:"request_id,omitempty" bson:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"  bson:"timestamp,omitempty"`
	IPAddress string    `json:"ip_address,omitempty" bson:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty" bson:"user_agent,omitempty"`
}

// NewMetadata creates metadata stamped with the current time.
func NewMetadata(userID, requestID string) Metadata {
	return Metadata{
		UserID:    userID,
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
	}
}

// WithIPAddress returns a copy with the client address set.
func (m Metadata) WithIPAddress(ip string) Metadata {
	m.IPAddress = ip
	return m
}

// WithUserAgent returns a copy with the user agent set.
func (m Metadata) WithUserAgent(ua string) Metadata {
	m.UserAgent = ua
	return m
}
