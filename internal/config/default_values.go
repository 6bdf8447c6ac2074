package config

const (
	DefaultProviderBaseURL   = "https://api.openai.com/v1"
	DefaultProviderModel     = "gpt-4o-mini"
	DefaultProviderTimeoutMS = 120000

	DefaultSummaryMaxOutputTokens = 200
	DefaultSummaryTemperature     = 0.3
	DefaultSummaryMaxInputTokens  = 24000
	DefaultSummaryPrompt          = "Summarize these code changes:"

	DefaultDiffContextLines   = 3
	DefaultDiffMaxOutputBytes = 8 << 20

	DefaultCommandTimeoutMS        = 120000
	DefaultCommandOutputLimitBytes = 8 << 20
)
