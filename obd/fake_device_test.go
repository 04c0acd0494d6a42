package obd_test

import (
	"context"
	"testing"

	"github.com/pjones/elm327diag/obd"
)

func TestFakeDevice(t *testing.T) {
	dev := obd.NewFakeDevice(0)
	conn := obd.NewConnection(dev, 0, nil)
	defer conn.Close()

	if err := conn.Initialize(context.Background()); err != nil {
		t.Fatal(err)
	}

	visited := 0
	err := obd.EachParameter(func(p obd.Parameter) error {
		v, err := conn.QueryParameter(context.Background(), obd.ModeCurrentData, p)
		if err != nil {
			return err
		}
		if v.Value < p.Min || v.Value > p.Max {
			t.Errorf("%s: value %f outside declared range [%f, %f]", p.Name, v.Value, p.Min, p.Max)
		}
		if v.Unit != p.Unit {
			t.Errorf("%s: unit %s, want %s", p.Name, v.Unit, p.Unit)
		}
		visited++
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if visited != len(obd.Parameters) {
		t.Fatalf("queried %d parameters, want %d", visited, len(obd.Parameters))
	}
}

func TestFakeDeviceUnknownPID(t *testing.T) {
	dev := obd.NewFakeDevice(0)
	conn := obd.NewConnection(dev, 0, nil)
	defer conn.Close()

	_, err := conn.Query(context.Background(), obd.ModeCurrentData, 0xEE)
	if err == nil {
		t.Fatal("expected an error for an unregistered PID")
	}
}
