// File: utils/constants.go
package utils

import "time"

// AvailabilityCachePrefix is the prefix for per-(instructor, week) cached
// availability reads.
const AvailabilityCachePrefix = "avail:week:"

// AvailabilityCacheTTL is the time-to-live for cached availability weeks.
const AvailabilityCacheTTL = 10 * time.Minute

// RefundPreviewPrefix keys short-lived refund confirmation tokens.
const RefundPreviewPrefix = "refund:preview:"

// RefundExecutionPrefix keys idempotent refund execution records.
const RefundExecutionPrefix = "refund:exec:"

// RefundPreviewTTL bounds how long a refund preview stays confirmable.
const RefundPreviewTTL = 15 * time.Minute

// BookingLockPrefix keys the per-booking payment mutation lock.
const BookingLockPrefix = "lock:booking:"

// SlotLockPrefix keys the per-(instructor, date) booking admission lock.
const SlotLockPrefix = "lock:slot:"

// BookingLockTTL bounds how long a worker may hold a per-booking lock before
// it expires on its own.
const BookingLockTTL = 30 * time.Second
