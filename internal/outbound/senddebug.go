package outbound

import "waworker/internal/edge"

func newSendDebug(originalTo, normalizedTo string, attempts int, stack string) edge.SendDebug {
	return edge.SendDebug{
		OriginalTo:   originalTo,
		NormalizedTo: normalizedTo,
		Attempts:     attempts,
		Stack:        stack,
	}
}
