package common

// AuthorizationHeaderName is the HTTP header carrying the work-order token.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the token value in the Authorization header.
const BearerPrefix = "Bearer "

// RetryAfterHeaderName tells a client how many seconds to wait before
// asking for a file that is still being staged.
const RetryAfterHeaderName = "Retry-After"
