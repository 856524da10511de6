package napi

import (
	"net/http"
	"strings"

	"github.com/netfabric/napi/shared/logger"
)

// ConnectionArgs represents a set of common connection properties.
type ConnectionArgs struct {
	// User agent string.
	UserAgent string

	// Custom HTTP Client (used as base for the connection).
	HTTPClient *http.Client

	// Skip the /ping probe upon connection.
	SkipPing bool
}

// Connect lets you connect to a NAPI daemon over HTTP.
//
// Unless SkipPing is set, the connection is verified with a /ping request
// before being returned.
func Connect(apiURL string, args *ConnectionArgs) (Server, error) {
	logger.Debug("Connecting to a NAPI daemon", logger.Ctx{"url": apiURL})

	// Use empty args if not specified
	if args == nil {
		args = &ConnectionArgs{}
	}

	httpClient := args.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	// Initialize the client struct
	server := ProtocolNAPI{
		httpHost:      strings.TrimSuffix(apiURL, "/"),
		httpUserAgent: args.UserAgent,
		http:          httpClient,
	}

	// Test the connection
	if !args.SkipPing {
		_, err := server.Ping()
		if err != nil {
			return nil, err
		}
	}

	return &server, nil
}
