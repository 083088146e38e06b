//go:build !picoatxtdebug

package diag

func RecordFrameOK()     {}
func RecordFrameFailed() {}
func RecordResend()      {}
func RecordReinit()      {}
func RecordReport()      {}
