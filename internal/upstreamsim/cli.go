package upstreamsim

import "os"

// ShowHelp prints usage information for the simulator.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`rollcall upstream simulator
===========================

Serves the recognition, attendance log and push endpoints the live
pipeline talks to, backed by a generated roster.

Usage:
  upstream-sim [options]

Options:
  -addr string
        Listen address (default ":8000")
  -roster int
        Registered identities; 0 answers no_students_registered (default 24)
  -match float
        Probability that a frame matches anyone (default 0.6)
  -fail float
        Probability that a recognition request fails (default 0.05)
  -min-latency duration
        Lower bound of recognition latency (default 80ms)
  -max-latency duration
        Upper bound of recognition latency (default 400ms)
  -events duration
        Period of background attendance events, 0 disables (default 3s)
  -verbose
        Enable debug logging
  -help
        Show this help message

Endpoints:
  POST /api/v1/attendance/process-frame   multipart "image"
  GET  /api/v1/attendance/logs            newest 50 records
  GET  /ws/attendance                     websocket push, one record per message
`)
}
