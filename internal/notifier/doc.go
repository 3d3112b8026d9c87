// Package notifier delivers short admin alerts (new contact message, failed
// transcode) without blocking the request that raised them.
//
// Notify only enqueues. Workers drain the queue through a token-bucket rate
// limiter and retry failed sends with backoff. Identical alerts inside the
// dedup window are dropped, so a burst of failing transcodes of the same file
// produces one message.
package notifier
