package models

import sm "github.com/leonj1/scribe-crush/internal/shared/models"

type (
	User                = sm.User
	RecordingStatus     = sm.RecordingStatus
	Recording           = sm.Recording
	RecordingChunk      = sm.RecordingChunk
	RecordingResponse   = sm.RecordingResponse
	ChunkUploadResponse = sm.ChunkUploadResponse
	FinishResponse      = sm.FinishResponse
	StatusResponse      = sm.StatusResponse
)

const (
	RecordingStatusActive    = sm.RecordingStatusActive
	RecordingStatusPaused    = sm.RecordingStatusPaused
	RecordingStatusFinishing = sm.RecordingStatusFinishing
	RecordingStatusEnded     = sm.RecordingStatusEnded
)

var NewRecordingResponse = sm.NewRecordingResponse
