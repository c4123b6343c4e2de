// Package all is a meta-package that imports all store implementations.
//
// This is a HACK to make tests work consistently.
package all

import (
	_ "github.com/ucp-commerce/ucp/lib/store/bbolt"
	_ "github.com/ucp-commerce/ucp/lib/store/memory"
	_ "github.com/ucp-commerce/ucp/lib/store/postgres"
	_ "github.com/ucp-commerce/ucp/lib/store/sqlite"
	_ "github.com/ucp-commerce/ucp/lib/store/valkey"
)
