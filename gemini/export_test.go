package gemini

// UsageFrom exports usageFrom for testing.
var UsageFrom = usageFrom
