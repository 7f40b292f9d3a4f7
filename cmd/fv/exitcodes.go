package main

// Exit codes.
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError = 2 // Configuration error (missing credentials, bad settings file)
	ExitDataError   = 3 // Data error (malformed JSONL, unreadable deal store)
	ExitAPIError    = 4 // Deal source or language model error (auth, rate limit, network)
)
