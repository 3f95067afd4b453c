package spans

import "strconv"

// formatSpanID builds "{thread_id}:{start_ns}:{seq}". seq is the
// reconstructor's monotonic call counter, guaranteeing uniqueness across
// same-thread, same-timestamp calls.
func formatSpanID(threadID uint32, startNs, seq uint64) string {
	return strconv.FormatUint(uint64(threadID), 10) + ":" +
		strconv.FormatUint(startNs, 10) + ":" +
		strconv.FormatUint(seq, 10)
}
