// Package identity defines the data model shared by the authentication
// broker: submitted credentials, external identities asserted by upstream
// sources, local account views, lookup keys, and the tagged raw and
// normalized outcome types.
//
// All values in this package are request-scoped and immutable once built.
// Nothing here performs I/O.
package identity
