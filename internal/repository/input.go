// Package repository reads simulation inputs and persists results.
package repository

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/mobsim/ridepool/internal/model"
)

// TimeLayout is the timestamp format of the input CSV files.
const TimeLayout = "2006-01-02 15:04:05"

var ErrBadHeader = errors.New("repository: unexpected CSV header")

// LoadRequests reads the traveller request file:
//
//	id,origin,destination,request_time,type,operator
func LoadRequests(path string) ([]model.RequestRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("requests: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	if err := expectHeader(r, []string{"id", "origin", "destination", "request_time", "type", "operator"}); err != nil {
		return nil, fmt.Errorf("requests: %w", err)
	}

	var rows []model.RequestRow
	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("requests: line %d: %w", line, err)
		}

		row, err := parseRequest(rec)
		if err != nil {
			return nil, fmt.Errorf("requests: line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseRequest(rec []string) (model.RequestRow, error) {
	var row model.RequestRow
	var err error

	if row.ID, err = strconv.ParseInt(rec[0], 10, 64); err != nil {
		return row, fmt.Errorf("id %q: %w", rec[0], err)
	}
	if row.Origin, err = strconv.ParseInt(rec[1], 10, 64); err != nil {
		return row, fmt.Errorf("origin %q: %w", rec[1], err)
	}
	if row.Destination, err = strconv.ParseInt(rec[2], 10, 64); err != nil {
		return row, fmt.Errorf("destination %q: %w", rec[2], err)
	}
	if row.RequestTime, err = time.Parse(TimeLayout, rec[3]); err != nil {
		return row, fmt.Errorf("request_time %q: %w", rec[3], err)
	}
	if row.Type, err = model.ParseServiceKind(rec[4]); err != nil {
		return row, err
	}
	row.Operator = rec[5]
	return row, nil
}

// LoadVehicles reads the fleet file:
//
//	id,origin,start_time,end_time,type,capacity,speed,operator
func LoadVehicles(path string) ([]model.VehicleRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("vehicles: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	if err := expectHeader(r, []string{"id", "origin", "start_time", "end_time", "type", "capacity", "speed", "operator"}); err != nil {
		return nil, fmt.Errorf("vehicles: %w", err)
	}

	var rows []model.VehicleRow
	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("vehicles: line %d: %w", line, err)
		}

		row, err := parseVehicle(rec)
		if err != nil {
			return nil, fmt.Errorf("vehicles: line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseVehicle(rec []string) (model.VehicleRow, error) {
	var row model.VehicleRow
	var err error

	if row.ID, err = strconv.ParseInt(rec[0], 10, 64); err != nil {
		return row, fmt.Errorf("id %q: %w", rec[0], err)
	}
	if row.Origin, err = strconv.ParseInt(rec[1], 10, 64); err != nil {
		return row, fmt.Errorf("origin %q: %w", rec[1], err)
	}
	if row.StartTime, err = time.Parse(TimeLayout, rec[2]); err != nil {
		return row, fmt.Errorf("start_time %q: %w", rec[2], err)
	}
	if row.EndTime, err = time.Parse(TimeLayout, rec[3]); err != nil {
		return row, fmt.Errorf("end_time %q: %w", rec[3], err)
	}
	if row.Type, err = model.ParseServiceKind(rec[4]); err != nil {
		return row, err
	}
	if row.Capacity, err = strconv.Atoi(rec[5]); err != nil {
		return row, fmt.Errorf("capacity %q: %w", rec[5], err)
	}
	if row.Speed, err = strconv.ParseFloat(rec[6], 64); err != nil {
		return row, fmt.Errorf("speed %q: %w", rec[6], err)
	}
	if row.Speed <= 0 {
		return row, fmt.Errorf("speed must be positive, got %v", row.Speed)
	}
	row.Operator = rec[7]
	return row, nil
}

func expectHeader(r *csv.Reader, want []string) error {
	got, err := r.Read()
	if err != nil {
		return err
	}
	if len(got) != len(want) {
		return fmt.Errorf("%w: got %d columns, want %d", ErrBadHeader, len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("%w: column %d is %q, want %q", ErrBadHeader, i, got[i], want[i])
		}
	}
	return nil
}
