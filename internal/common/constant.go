package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the access
// token on inbound and outbound requests.
const AccessTokenHeaderName = "access_token"

// UserAgentHeaderName is the gRPC metadata key read as the session user agent.
const UserAgentHeaderName = "user-agent"
