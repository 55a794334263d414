// Package services implements the driving ports on top of the driven
// ports: document lifecycle, the leader-gated embedding pipeline, the
// retrieval manager, and deletion/maintenance.
package services
