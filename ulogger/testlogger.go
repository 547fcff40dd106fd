package ulogger

// TestLogger discards everything. Use it wherever a test needs a Logger but
// the output is uninteresting.
type TestLogger struct{}

func (l TestLogger) LogLevel() int                                  { return 0 }
func (l TestLogger) SetLogLevel(_ string)                           {}
func (l TestLogger) Debugf(format string, args ...interface{})      {}
func (l TestLogger) Infof(format string, args ...interface{})       {}
func (l TestLogger) Warnf(format string, args ...interface{})       {}
func (l TestLogger) Errorf(format string, args ...interface{})      {}
func (l TestLogger) Fatalf(format string, args ...interface{})      {}
func (l TestLogger) New(_ string, _ ...Option) Logger               { return l }
func (l TestLogger) Duplicate(_ ...Option) Logger                   { return l }
