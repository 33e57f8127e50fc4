// Package api provides the conductor REST API: resource provisioning and
// lifecycle actions, backups and their schedules, template groups, quotas
// and link synchronisation. Every route lives under /api/v1.
package api
