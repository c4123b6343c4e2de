package internal

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// ParseBindNetFromAddr determines the bind network and address from an
// address that may carry a scheme, e.g. unix:///run/ucp.sock or :8923.
func ParseBindNetFromAddr(address string) (string, string, error) {
	defaultScheme := "http://"
	if !strings.Contains(address, "://") {
		if strings.HasPrefix(address, ":") {
			address = defaultScheme + "localhost" + address
		} else {
			address = defaultScheme + address
		}
	}

	bindUri, err := url.Parse(address)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse bind URL: %w", err)
	}

	switch bindUri.Scheme {
	case "unix":
		return "unix", bindUri.Path, nil
	case "tcp", "http", "https":
		return "tcp", bindUri.Host, nil
	default:
		return "", "", fmt.Errorf("unsupported network scheme %s in address %s", bindUri.Scheme, address)
	}
}

// SetupListener binds network/address and returns the listener with a
// printable URL for it. socketMode is the octal permission set applied to
// unix sockets.
func SetupListener(network, address, socketMode string) (net.Listener, string, error) {
	formattedAddress := ""

	if network == "" {
		var err error
		network, address, err = ParseBindNetFromAddr(address)
		if err != nil {
			return nil, "", err
		}
	}

	switch network {
	case "unix":
		formattedAddress = "unix:" + address
	case "tcp":
		if strings.HasPrefix(address, ":") { // assume it's just a port e.g. :8923
			formattedAddress = "http://localhost" + address
		} else {
			formattedAddress = "http://" + address
		}
	default:
		formattedAddress = fmt.Sprintf(`(%s) %s`, network, address)
	}

	listener, err := net.Listen(network, address)
	if err != nil {
		return nil, "", fmt.Errorf("failed to bind to %s: %w", formattedAddress, err)
	}

	// additional permission handling for unix sockets
	if network == "unix" {
		mode, err := strconv.ParseUint(socketMode, 8, 0)
		if err != nil {
			listener.Close()
			return nil, "", fmt.Errorf("could not parse socket mode %s: %w", socketMode, err)
		}

		if err := os.Chmod(address, os.FileMode(mode)); err != nil {
			listener.Close()
			return nil, "", fmt.Errorf("could not change socket mode: %w", err)
		}
	}

	return listener, formattedAddress, nil
}
