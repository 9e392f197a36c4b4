package store

import "nyiyui.ca/hato/rosen"

// Ids used by Testbench.
const (
	TBAlpha rosen.ID = 1
	TBBeta  rosen.ID = 2
	TBGamma rosen.ID = 3
	// TBDelta has no tracks.
	TBDelta rosen.ID = 4

	TBTrackA1 rosen.ID = 11
	TBTrackB1 rosen.ID = 21
	TBTrackB2 rosen.ID = 22
	TBTrackC1 rosen.ID = 31

	TBSegAB rosen.ID = 1001
	TBSegBC rosen.ID = 1002

	// TBLineMain runs Alpha→Beta→Gamma.
	TBLineMain rosen.ID = 1
	// TBLineBack runs Gamma→Beta→Alpha over the same (reversed) segments.
	TBLineBack rosen.ID = 2
	// TBLineBroken uses TBSegAB twice, so its segments are not adjacent.
	TBLineBroken rosen.ID = 3

	// TBJobDown runs Alpha→Beta→Gamma, TBJobUp runs Gamma→Beta→Alpha.
	TBJobDown rosen.ID = 1
	TBJobUp   rosen.ID = 2
	// TBJobMismatch stops at Beta with disagreeing in/out tracks.
	TBJobMismatch rosen.ID = 3
	// TBJobNoTrack stops at Beta without gate connections.
	TBJobNoTrack rosen.ID = 4
	// TBJobForeign stops at Beta on a track of Alpha.
	TBJobForeign rosen.ID = 5
)

func color(c uint32) *uint32 { return &c }

// Testbench returns a three-station line with a handful of jobs.
//
//	Alpha(A1) ==1001== Beta(B1,B2) ==1002== Gamma(C1)
func Testbench() Fixture {
	return Fixture{
		Stations: []Station{
			{ID: TBAlpha, Name: "Alpha", ShortName: "A", Type: rosen.StationNormal},
			{ID: TBBeta, Name: "Beta", Type: rosen.StationNormal},
			{ID: TBGamma, Name: "Gamma", ShortName: "G", Type: rosen.StationSimpleStop},
			{ID: TBDelta, Name: "Delta", Type: rosen.StationJunction},
		},
		Tracks: []Track{
			{ID: TBTrackA1, StationID: TBAlpha, Pos: 0, Name: "1", Type: rosen.TrackElectrified},
			// stored out of order on purpose; Pos decides
			{ID: TBTrackB2, StationID: TBBeta, Pos: 1, Name: "2", Color: color(0x00FF00)},
			{ID: TBTrackB1, StationID: TBBeta, Pos: 0, Name: "1", Type: rosen.TrackElectrified | rosen.TrackThrough},
			{ID: TBTrackC1, StationID: TBGamma, Pos: 0, Name: "1"},
		},
		Gates: []Gate{
			{ID: 101, StationID: TBAlpha, Side: 1, Name: "E"},
			{ID: 201, StationID: TBBeta, Side: 0, Name: "W"},
			{ID: 202, StationID: TBBeta, Side: 1, Name: "E"},
			{ID: 301, StationID: TBGamma, Side: 0, Name: "W"},
		},
		GateConnections: []GateConnection{
			{ID: 1011, GateID: 101, TrackID: TBTrackA1},
			{ID: 2011, GateID: 201, TrackID: TBTrackB1},
			{ID: 2012, GateID: 201, TrackID: TBTrackB2},
			{ID: 2021, GateID: 202, TrackID: TBTrackB1},
			{ID: 2022, GateID: 202, TrackID: TBTrackB2},
			{ID: 3011, GateID: 301, TrackID: TBTrackC1},
		},
		Segments: []Segment{
			{ID: TBSegAB, Name: "Alpha-Beta", InGateID: 101, OutGateID: 201, MaxSpeedKmh: 120, DistanceMeters: 5000},
			{ID: TBSegBC, Name: "Beta-Gamma", InGateID: 202, OutGateID: 301, MaxSpeedKmh: 100, DistanceMeters: 3000},
		},
		RailwayConnections: []RailwayConnection{
			{ID: 5001, SegmentID: TBSegAB, InTrackID: TBTrackA1, OutTrackID: TBTrackB1},
			{ID: 5002, SegmentID: TBSegBC, InTrackID: TBTrackB1, OutTrackID: TBTrackC1},
		},
		Lines: []Line{
			{ID: TBLineMain, Name: "Main"},
			{ID: TBLineBack, Name: "Back"},
			{ID: TBLineBroken, Name: "Broken"},
		},
		LineSegments: []LineSegment{
			{ID: 1, LineID: TBLineMain, SegmentID: TBSegAB, Pos: 0},
			{ID: 2, LineID: TBLineMain, SegmentID: TBSegBC, Pos: 1},
			{ID: 3, LineID: TBLineBack, SegmentID: TBSegBC, Reversed: true, Pos: 0},
			{ID: 4, LineID: TBLineBack, SegmentID: TBSegAB, Reversed: true, Pos: 1},
			{ID: 5, LineID: TBLineBroken, SegmentID: TBSegAB, Pos: 0},
			{ID: 6, LineID: TBLineBroken, SegmentID: TBSegAB, Pos: 1},
		},
		Jobs: []Job{
			{ID: TBJobDown, Category: rosen.CategoryRegional},
			{ID: TBJobUp, Category: rosen.CategoryFreight},
			{ID: TBJobMismatch, Category: rosen.CategoryLocal},
			{ID: TBJobNoTrack, Category: rosen.CategoryLocal},
			{ID: TBJobForeign, Category: rosen.CategoryLocal},
		},
		Stops: []Stop{
			{ID: 11, JobID: TBJobDown, StationID: TBAlpha, Arrival: rosen.Clock(8, 0, 0), Departure: rosen.Clock(8, 0, 0), OutGateConn: 1011, NextSegmentConn: 5001},
			{ID: 12, JobID: TBJobDown, StationID: TBBeta, Arrival: rosen.Clock(8, 30, 0), Departure: rosen.Clock(8, 45, 0), InGateConn: 2011, OutGateConn: 2021, NextSegmentConn: 5002},
			{ID: 13, JobID: TBJobDown, StationID: TBGamma, Arrival: rosen.Clock(9, 10, 0), Departure: rosen.Clock(9, 10, 0), InGateConn: 3011},

			{ID: 21, JobID: TBJobUp, StationID: TBGamma, Arrival: rosen.Clock(10, 0, 0), Departure: rosen.Clock(10, 0, 0), OutGateConn: 3011, NextSegmentConn: 5002},
			{ID: 22, JobID: TBJobUp, StationID: TBBeta, Arrival: rosen.Clock(10, 20, 0), Departure: rosen.Clock(10, 30, 0), InGateConn: 2022, OutGateConn: 2012, NextSegmentConn: 5001},
			{ID: 23, JobID: TBJobUp, StationID: TBAlpha, Arrival: rosen.Clock(11, 0, 0), Departure: rosen.Clock(11, 0, 0), InGateConn: 1011},

			{ID: 31, JobID: TBJobMismatch, StationID: TBBeta, Arrival: rosen.Clock(12, 0, 0), Departure: rosen.Clock(12, 10, 0), InGateConn: 2011, OutGateConn: 2022},
			{ID: 41, JobID: TBJobNoTrack, StationID: TBBeta, Arrival: rosen.Clock(13, 0, 0), Departure: rosen.Clock(13, 5, 0)},
			{ID: 51, JobID: TBJobForeign, StationID: TBBeta, Arrival: rosen.Clock(14, 0, 0), Departure: rosen.Clock(14, 5, 0), InGateConn: 1011},
		},
	}
}

// OpenTestbench opens an in-memory database seeded with Testbench. It panics on error.
func OpenTestbench() *DB {
	d, err := Open(":memory:")
	if err != nil {
		panic(err)
	}
	if err := d.Import(Testbench()); err != nil {
		panic(err)
	}
	return d
}
