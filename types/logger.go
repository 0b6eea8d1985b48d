package types

// Logger is the leveled logging contract the coordinator logs through. The
// shape matches the teacher's hand-rolled definition.Logger interface, kept
// so a caller can plug in any backend; the shipped default (definition
// package) backs it with logrus instead of stdlib log.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}
