// Package sdk picks the store mode for an application.
//
// With an address, Open connects to a celerix-stored daemon; otherwise
// it opens the data directory in process. Both return a store.Store
// with the same semantics, so switching modes is a deployment decision:
//
//	s, err := sdk.OpenFromEnv(ctx, "./data")
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
// OpenFromEnv reads CELERIX_STORE_ADDR, CELERIX_DISABLE_TLS,
// CELERIX_CA_FILE and CELERIX_DATA_DIR.
package sdk
