// Package store provides the storage drivers behind the authentication
// service: an in-memory store, a Postgres primary store, Redis secondary
// session storage, and a read-through session cache.
package store

import "strconv"

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
