package dvr

import "os"

// StopCode is the recorder's verdict when a recording ends.
type StopCode int

const (
	StopOK StopCode = iota
	StopAborted
	StopSourceDeleted
	StopNoInput
	StopNoSpace
)

// Recorder is the capture pipeline the engine drives. Subscribe may spawn an
// independent capture task; that task reports back through
// Engine.RecorderUpdate, which serializes the mutation under the engine lock.
type Recorder interface {
	Subscribe(e *Entry)
	Unsubscribe(e *Entry, code StopCode)
}

// Status renders the human-readable state of an entry. FileMissing is derived
// at read time and never changes stored state.
func (eng *Engine) Status(e *Entry) string {
	switch e.schedState {
	case SchedScheduled:
		return "Scheduled for recording"
	case SchedRecording:
		switch e.recState {
		case RecWaitProgramStart:
			return "Waiting for program start"
		case RecRunning:
			return "Running"
		case RecCommercial:
			return "Commercial break"
		case RecError:
			return "Recording error"
		default:
			return "Pending"
		}
	case SchedCompleted:
		if e.ErrorCode != int(StopOK) {
			return "Recording error"
		}
		if e.Filename != "" {
			if _, err := os.Stat(e.Filename); err != nil {
				return "File missing"
			}
		}
		return "Completed OK"
	case SchedMissedTime:
		return "Time missed"
	default:
		return "Invalid"
	}
}

// FileSize stats the recorded file, 0 when absent.
func (e *Entry) FileSize() int64 {
	if e.Filename == "" {
		return 0
	}
	fi, err := os.Stat(e.Filename)
	if err != nil {
		return 0
	}
	return fi.Size()
}
