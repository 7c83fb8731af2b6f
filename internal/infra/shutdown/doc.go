// Package shutdown runs the daemon's cleanup hooks on SIGINT or SIGTERM.
//
// Hooks run in reverse registration order under one timeout, so a
// component registered after its dependencies is stopped before them:
//
//	h := shutdown.NewHandler(15*time.Second, logger)
//	h.OnShutdown("storage", backend.Close)
//	h.OnShutdown("server", srv.Shutdown)
//	err := h.Wait(ctx)
package shutdown
