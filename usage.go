package streamchat

// Usage is the token consumption of one generated reply. Generators
// normalize their provider's fields to:
//
//	InputTokens      = non-cached input tokens
//	CacheReadTokens  = input tokens served from cache
//	CacheWriteTokens = input tokens written to cache
//
// Derived counts are clamped to zero when upstream data is inconsistent.
type Usage struct {
	InputTokens      int
	OutputTokens     int
	CacheReadTokens  int
	CacheWriteTokens int
}

// TotalInput returns every input token regardless of cache status.
func (u Usage) TotalInput() int {
	return u.InputTokens + u.CacheReadTokens + u.CacheWriteTokens
}
