// Package classifier partitions discovered artifacts into per-host groups.
//
// Each artifact goes to the first host, in priority order RCC, DCC, BCC,
// owning a prefix its name starts with. The result is complete only when
// every host received exactly as many packages as it has prefixes and no
// artifact was left over; deciding what to do otherwise is up to the caller.
package classifier
