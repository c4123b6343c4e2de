package memory

import (
	"encoding/json"
	"testing"

	"github.com/ucp-commerce/ucp/lib/store/storetest"
)

func TestImpl(t *testing.T) {
	storetest.Common(t, factory{}, json.RawMessage(`{}`))
}
