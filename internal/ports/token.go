package ports

// TokenSource produces random tokens for anonymous group names.
// The contract is collision avoidance by retry: the manager keeps drawing
// tokens until one is not already a group name, so implementations only need
// a reasonable spread, not uniqueness.
type TokenSource interface {
	// Token returns a short random string.
	Token() string
}
