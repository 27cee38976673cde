package loadtest

import "os"

// ShowHelp prints usage information for the load tool.
func ShowHelp() {
	os.Stdout.WriteString(`Podium Load Tool
================

Submits generated runs to a running podium instance and verifies that
today's board agrees with the runs the service accepted. Run it against
a fresh day or a fresh database; earlier runs on the board are reported
as mismatches.

Usage:
  podium-load [options]

Options:
  -url string        Base URL of the service (default "http://localhost:9080")
  -players int       Distinct players (default 200)
  -runs int          Runs to submit (default 2000)
  -cheat float       Share of impossible victory runs (default 0.05)
  -retry float       Share of runs resent with the same Idempotency-Key (default 0.05)
  -top int           Board rows to verify (default 40)
  -workers int       Concurrent submitters (default CPU cores * 2)
  -timeout duration  HTTP request timeout (default 10s)
  -min-victory float Server anti-cheat floor in seconds (default 180)
  -seed uint         Generator seed (default: current time)
  -output string     Write generated runs to this JSON file
  -verbose           Log progress
  -help              Show this help message

Each player submits from its own X-Forwarded-For origin, so the server rate
limit applies per player. The server only honours that header from peers in
PODIUM_TRUSTED_PROXIES; include the address this tool connects from.
`)
}
