// Package domain holds the job model shared by the server, the CLI and the
// stores: job kinds, the status lifecycle, the uploaded document and the
// typed results each kind produces.
package domain
