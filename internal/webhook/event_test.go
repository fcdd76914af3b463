package webhook

import "testing"

func TestParseChargeEventMetadataShapes(t *testing.T) {
	bodies := []string{
		`{"event":"charge.success","data":{"reference":"r1","amount":50000,"metadata":{"tripId":"abc","purchaseTripId":"pt-1"}}}`,
		`{"event":"charge.success","data":{"reference":"r1","amount":50000,"metadata":"{\"tripId\":\"abc\",\"purchaseTripId\":\"pt-1\"}"}}`,
	}
	for _, body := range bodies {
		ev, err := ParseEvent([]byte(body))
		if err != nil {
			t.Fatalf("parse error: %v", err)
		}
		if ev.Event != EventChargeSuccess {
			t.Fatalf("unexpected event %q", ev.Event)
		}
		d, err := ev.Charge()
		if err != nil {
			t.Fatalf("charge decode error: %v", err)
		}
		if d.Reference != "r1" || d.Amount != 50000 {
			t.Fatalf("unexpected charge: %+v", d)
		}
		if d.Metadata.Get("tripId") != "abc" || d.Metadata.Get("purchaseTripId") != "pt-1" {
			t.Fatalf("metadata not decoded: %+v", d.Metadata)
		}
	}
}

func TestMetadataNumericIDsAndEmpty(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"event":"transfer.success","data":{"reference":"po-1","metadata":{"paymentId":42,"nested":{"x":1}}}}`))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	d, err := ev.Transfer()
	if err != nil {
		t.Fatalf("transfer decode error: %v", err)
	}
	if d.Metadata.Get("paymentId") != "42" {
		t.Fatalf("numeric id not stringified: %+v", d.Metadata)
	}
	if _, ok := d.Metadata["nested"]; ok {
		t.Fatalf("nested objects should be skipped")
	}

	ev, _ = ParseEvent([]byte(`{"event":"charge.success","data":{"reference":"r2","metadata":""}}`))
	c, err := ev.Charge()
	if err != nil || len(c.Metadata) != 0 {
		t.Fatalf("empty metadata should decode to empty map: %v %+v", err, c.Metadata)
	}
}

func TestParseEventRequiresType(t *testing.T) {
	if _, err := ParseEvent([]byte(`{"data":{}}`)); err == nil {
		t.Fatalf("expected error for missing event")
	}
	if _, err := ParseEvent([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for invalid json")
	}
}
