package openai

// UsageFrom exports usageFrom for testing.
var UsageFrom = usageFrom
