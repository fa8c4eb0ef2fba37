package engine

import "errors"

var (
	ErrInvalidName            = errors.New("invalid name")
	ErrIllegalName            = errors.New("name already in use")
	ErrInvalidLength          = errors.New("invalid stage length")
	ErrInvalidLocation        = errors.New("checkpoint location outside stage")
	ErrInvalidStageState      = errors.New("invalid stage state")
	ErrInvalidStageType       = errors.New("invalid stage type")
	ErrInvalidCheckpointType  = errors.New("invalid checkpoint type")
	ErrDuplicatedResult       = errors.New("rider already has a result in stage")
	ErrInvalidCheckpointTimes = errors.New("wrong number of checkpoint times")
	ErrInvalidRider           = errors.New("invalid rider")
)
