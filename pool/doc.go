// Package pool
// Author: momentics <momentics@gmail.com>
//
// NUMA-aware, zero-copy buffer pooling for peer read buffers.
// Cross-platform (Linux/Windows), backing L3Peer's per-registration buffer.
// See bufferpool.go for implementation details.
package pool
