// Package jobs schedules periodic maintenance: expired tenant invitation
// cleanup and the audit event retention sweep.
package jobs
