package websocket

// Queued returns the number of messages waiting in the send queue.
func (c *Client) Queued() int {
	return len(c.send)
}
