// Package server hosts the HTTP surface: the hub callback endpoint
// that receives verification handshakes and signed feed pushes, plus
// the operational endpoints (health, metrics, status).
package server
