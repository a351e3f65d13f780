package dash

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/dashlink/internal/eventloop"
	"github.com/danmuck/dashlink/internal/protocol"
	"github.com/danmuck/dashlink/internal/testutil/testlog"
	"github.com/danmuck/dashlink/internal/transport"
)

type harness struct {
	t     *testing.T
	eng   *Engine
	tr    *transport.Memory
	clock *eventloop.ManualScheduler
	errs  []protocol.ErrorKind
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	testlog.Start(t)
	log := testlog.Logger(t)
	h := &harness{
		t:     t,
		tr:    transport.NewMemory(eventloop.Inline{}),
		clock: eventloop.NewManualScheduler(),
	}
	h.eng = New(Deps{Transport: h.tr, Scheduler: h.clock, Logger: &log}, DefaultConfig())
	if err := h.eng.Init("MyApp", func(k protocol.ErrorKind) { h.errs = append(h.errs, k) }); err != nil {
		t.Fatalf("init: %v", err)
	}
	return h
}

// untilSent advances past the send delay.
func (h *harness) untilSent() {
	h.clock.Advance(DefaultConfig().SendDelay)
}

type dataRecorder struct{ got []DataResult }

func (r *dataRecorder) handle(res DataResult) { r.got = append(r.got, res) }

type featureRecorder struct{ got []FeatureResult }

func (r *featureRecorder) handle(res FeatureResult) { r.got = append(r.got, res) }

func TestScenarioGetDataThenSetFeatureWithBusyRejection(t *testing.T) {
	h := newHarness(t)

	var data dataRecorder
	if err := h.eng.GetData(protocol.DataBatteryPercent, data.handle); err != nil {
		t.Fatalf("get data: %v", err)
	}
	h.eng.FakeGetDataResponse(protocol.DataBatteryPercent, 73, "")
	if len(data.got) != 1 {
		t.Fatalf("unexpected data completions=%d", len(data.got))
	}
	r := data.got[0]
	if r.Err != protocol.ErrorSuccess || r.Kind != protocol.DataBatteryPercent || r.Value.Shape() != protocol.ShapeInteger || r.Value.Int != 73 {
		t.Fatalf("unexpected data result=%+v", r)
	}

	var feat featureRecorder
	if err := h.eng.SetFeature(protocol.FeatureWifi, protocol.FeatureStateOn, feat.handle); err != nil {
		t.Fatalf("set feature: %v", err)
	}
	h.untilSent()
	sent := h.tr.Sent()
	if len(sent) != 1 {
		t.Fatalf("unexpected sent=%d", len(sent))
	}
	if k, _ := sent[0].Int32(protocol.KeyFeatureType); protocol.FeatureKind(k) != protocol.FeatureWifi {
		t.Fatalf("unexpected FeatureType=%d", k)
	}
	if s, _ := sent[0].Int32(protocol.KeyFeatureState); protocol.FeatureState(s) != protocol.FeatureStateOn {
		t.Fatalf("unexpected FeatureState=%d", s)
	}

	var busy dataRecorder
	err := h.eng.GetData(protocol.DataBatteryPercent, busy.handle)
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if len(busy.got) != 1 || busy.got[0].Err != protocol.ErrorSendFailed {
		t.Fatalf("busy caller not told SendFailed: %+v", busy.got)
	}

	h.eng.FakeSetFeatureResponse(protocol.FeatureWifi, protocol.FeatureStateOn)
	if len(feat.got) != 1 {
		t.Fatalf("unexpected feature completions=%d", len(feat.got))
	}
	if f := feat.got[0]; f.Err != protocol.ErrorSuccess || f.Kind != protocol.FeatureWifi || f.State != protocol.FeatureStateOn {
		t.Fatalf("unexpected feature result=%+v", f)
	}
	if h.eng.Phase() != PhaseIdle {
		t.Fatalf("unexpected phase=%s", h.eng.Phase())
	}
}

func TestRequestBeforeInitFailsSynchronously(t *testing.T) {
	testlog.Start(t)
	eng := New(Deps{Transport: transport.NewMemory(eventloop.Inline{}), Scheduler: eventloop.NewManualScheduler()}, DefaultConfig())
	var data dataRecorder
	if err := eng.GetData(protocol.DataBatteryPercent, data.handle); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if len(data.got) != 1 || data.got[0].Err != protocol.ErrorSendFailed {
		t.Fatalf("unexpected results=%+v", data.got)
	}
	if err := eng.CheckIsAvailable(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized for probe, got %v", err)
	}
}

func TestValidationRejectsWithoutStateChange(t *testing.T) {
	h := newHarness(t)
	cases := []struct {
		name  string
		issue func(*featureRecorder, *dataRecorder) error
		want  error
	}{
		{"data kind below range", func(_ *featureRecorder, d *dataRecorder) error {
			return h.eng.GetData(protocol.DataKind(678341), d.handle)
		}, protocol.ErrInvalidDataKind},
		{"data kind above range", func(_ *featureRecorder, d *dataRecorder) error {
			return h.eng.GetData(protocol.DataKind(678351), d.handle)
		}, protocol.ErrInvalidDataKind},
		{"feature kind", func(f *featureRecorder, _ *dataRecorder) error {
			return h.eng.GetFeature(protocol.FeatureKind(467828), f.handle)
		}, protocol.ErrInvalidFeatureKind},
		{"unknown state", func(f *featureRecorder, _ *dataRecorder) error {
			return h.eng.SetFeature(protocol.FeatureWifi, protocol.FeatureStateUnknown, f.handle)
		}, protocol.ErrInvalidFeatureState},
		{"state above range", func(f *featureRecorder, _ *dataRecorder) error {
			return h.eng.SetFeature(protocol.FeatureRinger, protocol.FeatureState(6), f.handle)
		}, protocol.ErrInvalidFeatureState},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var f featureRecorder
			var d dataRecorder
			err := tc.issue(&f, &d)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if len(f.got)+len(d.got) != 1 {
				t.Fatalf("handler must run exactly once, got %d", len(f.got)+len(d.got))
			}
			if len(f.got) == 1 && (f.got[0].Err != protocol.ErrorSendFailed || f.got[0].State != protocol.FeatureStateUnknown) {
				t.Fatalf("unexpected feature result=%+v", f.got[0])
			}
			if len(d.got) == 1 && d.got[0].Err != protocol.ErrorSendFailed {
				t.Fatalf("unexpected data result=%+v", d.got[0])
			}
			if h.eng.Phase() != PhaseIdle || h.clock.Pending() != 0 {
				t.Fatalf("state changed: phase=%s pending=%d", h.eng.Phase(), h.clock.Pending())
			}
		})
	}

	// boundary kinds are accepted
	if err := h.eng.GetData(protocol.DataNextCalendarEventTwoLine, nil); err != nil {
		t.Fatalf("upper data boundary rejected: %v", err)
	}
	h.eng.FakeError(protocol.ErrorUnavailable)
	if err := h.eng.SetFeature(protocol.FeatureAutoBrightness, protocol.FeatureStateRingerSilent, nil); err != nil {
		t.Fatalf("upper feature boundary rejected: %v", err)
	}
	if len(h.tr.Sent()) != 0 {
		t.Fatalf("nothing should be on the wire yet")
	}
}

func TestLinkDownFailsSynchronously(t *testing.T) {
	h := newHarness(t)
	h.tr.SetConnected(false)
	var feat featureRecorder
	if err := h.eng.GetFeature(protocol.FeatureBluetooth, feat.handle); !errors.Is(err, ErrLinkDown) {
		t.Fatalf("expected ErrLinkDown, got %v", err)
	}
	if len(feat.got) != 1 || feat.got[0].Err != protocol.ErrorSendFailed {
		t.Fatalf("unexpected results=%+v", feat.got)
	}
	if err := h.eng.CheckIsAvailable(); !errors.Is(err, ErrLinkDown) {
		t.Fatalf("expected ErrLinkDown for probe, got %v", err)
	}
	if len(h.errs) != 1 || h.errs[0] != protocol.ErrorSendFailed {
		t.Fatalf("probe failure must reach the error handler: %v", h.errs)
	}
}

func TestSendDelayThenAwaitReply(t *testing.T) {
	h := newHarness(t)
	if err := h.eng.GetData(protocol.DataGSMOperatorName, nil); err != nil {
		t.Fatalf("get data: %v", err)
	}
	if h.eng.Phase() != PhaseSending {
		t.Fatalf("unexpected phase=%s", h.eng.Phase())
	}
	h.clock.Advance(199 * time.Millisecond)
	if len(h.tr.Sent()) != 0 {
		t.Fatalf("sent before delay elapsed")
	}
	h.clock.Advance(time.Millisecond)
	sent := h.tr.Sent()
	if len(sent) != 1 {
		t.Fatalf("unexpected sent=%d", len(sent))
	}
	if name, _ := sent[0].Str(protocol.KeyAppName); name != "MyApp" {
		t.Fatalf("unexpected app name=%q", name)
	}
	if h.eng.Phase() != PhaseAwaitingReply {
		t.Fatalf("unexpected phase=%s", h.eng.Phase())
	}
	if h.clock.Pending() != 1 {
		t.Fatalf("exactly one timer must be armed, got %d", h.clock.Pending())
	}
}

func TestTimeoutFiresExactlyOnce(t *testing.T) {
	h := newHarness(t)
	var data dataRecorder
	if err := h.eng.GetData(protocol.DataBatteryPercent, data.handle); err != nil {
		t.Fatalf("get data: %v", err)
	}
	h.untilSent()
	h.clock.Advance(10 * time.Second)
	h.clock.Advance(time.Minute)
	if len(data.got) != 1 || data.got[0].Err != protocol.ErrorUnavailable {
		t.Fatalf("unexpected results=%+v", data.got)
	}
	if h.eng.Phase() != PhaseIdle || h.clock.Pending() != 0 {
		t.Fatalf("engine not idle: phase=%s pending=%d", h.eng.Phase(), h.clock.Pending())
	}
	// a late reply after the timeout is discarded
	reply, _ := protocol.EncodeDataReply(protocol.IntValue(protocol.DataBatteryPercent, 1))
	h.tr.Inject(reply)
	if len(data.got) != 1 {
		t.Fatalf("late reply completed again: %+v", data.got)
	}
}

func TestFakeResponseBeforeTimerCancelsIt(t *testing.T) {
	h := newHarness(t)
	var feat featureRecorder
	if err := h.eng.GetFeature(protocol.FeatureRinger, feat.handle); err != nil {
		t.Fatalf("get feature: %v", err)
	}
	h.untilSent()
	h.clock.Advance(10*time.Second - time.Millisecond)
	h.eng.FakeGetFeatureResponse(protocol.FeatureRinger, protocol.FeatureStateRingerVibrate)
	h.clock.Advance(time.Second)
	if len(feat.got) != 1 {
		t.Fatalf("unexpected completions=%d", len(feat.got))
	}
	if feat.got[0].Err != protocol.ErrorSuccess || feat.got[0].State != protocol.FeatureStateRingerVibrate {
		t.Fatalf("unexpected result=%+v", feat.got[0])
	}
	if h.clock.Pending() != 0 {
		t.Fatalf("timer left armed: %d", h.clock.Pending())
	}
}

func TestFakeResponseDuringSendDelayCancelsSend(t *testing.T) {
	h := newHarness(t)
	var data dataRecorder
	if err := h.eng.GetData(protocol.DataWifiNetworkName, data.handle); err != nil {
		t.Fatalf("get data: %v", err)
	}
	h.eng.FakeGetDataResponse(protocol.DataWifiNetworkName, 0, "home")
	h.clock.Advance(time.Minute)
	if len(h.tr.Sent()) != 0 {
		t.Fatalf("cancelled request was still sent")
	}
	if len(data.got) != 1 || data.got[0].Value.Text != "home" {
		t.Fatalf("unexpected results=%+v", data.got)
	}
	// the abandoned outbound buffer does not block the next request
	if err := h.eng.GetData(protocol.DataWifiNetworkName, nil); err != nil {
		t.Fatalf("next request: %v", err)
	}
	h.untilSent()
	if len(h.tr.Sent()) != 1 {
		t.Fatalf("next request not sent")
	}
}

func TestInboundReplyCompletes(t *testing.T) {
	h := newHarness(t)
	var data dataRecorder
	if err := h.eng.GetData(protocol.DataStorageFreeGBString, data.handle); err != nil {
		t.Fatalf("get data: %v", err)
	}
	h.untilSent()
	reply, _ := protocol.EncodeDataReply(protocol.TextValue(protocol.DataStorageFreeGBString, "12.5 GB"))
	h.tr.Inject(reply)
	if len(data.got) != 1 || data.got[0].Err != protocol.ErrorSuccess || data.got[0].Value.Text != "12.5 GB" {
		t.Fatalf("unexpected results=%+v", data.got)
	}
	if h.clock.Pending() != 0 || h.eng.Phase() != PhaseIdle {
		t.Fatalf("engine not idle: phase=%s pending=%d", h.eng.Phase(), h.clock.Pending())
	}
}

func TestMismatchedAndMalformedInboundAreDiscarded(t *testing.T) {
	h := newHarness(t)
	var feat featureRecorder
	if err := h.eng.SetFeature(protocol.FeatureHotSpot, protocol.FeatureStateOff, feat.handle); err != nil {
		t.Fatalf("set feature: %v", err)
	}
	h.untilSent()

	wrongReq, _ := protocol.EncodeFeatureReply(protocol.RequestGetFeature, protocol.FeatureHotSpot, protocol.FeatureStateOff)
	wrongKind, _ := protocol.EncodeFeatureReply(protocol.RequestSetFeature, protocol.FeatureWifi, protocol.FeatureStateOff)
	data, _ := protocol.EncodeDataReply(protocol.IntValue(protocol.DataBatteryPercent, 5))
	var garbage protocol.Dict
	garbage.SetString(protocol.RequestSetFeature.Key(), "nope")
	for _, d := range []protocol.Dict{wrongReq, wrongKind, data, garbage, {}} {
		h.tr.Inject(d)
	}
	if len(feat.got) != 0 || h.eng.Phase() != PhaseAwaitingReply {
		t.Fatalf("discarded input changed state: results=%+v phase=%s", feat.got, h.eng.Phase())
	}
	if len(h.errs) != 0 {
		t.Fatalf("discarded input reached error handler: %v", h.errs)
	}

	right, _ := protocol.EncodeFeatureReply(protocol.RequestSetFeature, protocol.FeatureHotSpot, protocol.FeatureStateOff)
	h.tr.Inject(right)
	if len(feat.got) != 1 || feat.got[0].State != protocol.FeatureStateOff {
		t.Fatalf("unexpected results=%+v", feat.got)
	}
}

func TestResultMarkerFailureCompletesAndNotifiesOnce(t *testing.T) {
	h := newHarness(t)
	var feat featureRecorder
	if err := h.eng.SetFeature(protocol.FeatureWifi, protocol.FeatureStateOff, feat.handle); err != nil {
		t.Fatalf("set feature: %v", err)
	}
	h.untilSent()
	h.tr.Inject(protocol.EncodeResult(protocol.ErrorNoPermission))
	if len(feat.got) != 1 || feat.got[0].Err != protocol.ErrorNoPermission {
		t.Fatalf("unexpected results=%+v", feat.got)
	}
	if len(h.errs) != 1 || h.errs[0] != protocol.ErrorNoPermission {
		t.Fatalf("unexpected error handler calls=%v", h.errs)
	}
	h.clock.Advance(time.Minute)
	if len(feat.got) != 1 {
		t.Fatalf("timeout completed again")
	}
}

func TestResultMarkerSuccessLeavesTypedRequestOutstanding(t *testing.T) {
	h := newHarness(t)
	var data dataRecorder
	if err := h.eng.GetData(protocol.DataUnreadSMSCount, data.handle); err != nil {
		t.Fatalf("get data: %v", err)
	}
	h.untilSent()
	h.tr.Inject(protocol.EncodeResult(protocol.ErrorSuccess))
	if len(data.got) != 0 || h.eng.Phase() != PhaseAwaitingReply {
		t.Fatalf("success marker completed a typed request: %+v", data.got)
	}
	if len(h.errs) != 1 || h.errs[0] != protocol.ErrorSuccess {
		t.Fatalf("unexpected error handler calls=%v", h.errs)
	}
}

func TestResultMarkerWithoutOutstandingRequest(t *testing.T) {
	h := newHarness(t)
	h.tr.Inject(protocol.EncodeResult(protocol.ErrorWrongVersion))
	if len(h.errs) != 1 || h.errs[0] != protocol.ErrorWrongVersion {
		t.Fatalf("unexpected error handler calls=%v", h.errs)
	}
	if h.eng.Phase() != PhaseIdle {
		t.Fatalf("unexpected phase=%s", h.eng.Phase())
	}
}

func TestAvailabilityProbe(t *testing.T) {
	h := newHarness(t)
	if err := h.eng.CheckIsAvailable(); err != nil {
		t.Fatalf("probe: %v", err)
	}
	if err := h.eng.GetData(protocol.DataBatteryPercent, nil); !errors.Is(err, ErrBusy) {
		t.Fatalf("probe must occupy the slot, got %v", err)
	}
	h.untilSent()
	if !h.tr.Sent()[0].Has(protocol.RequestIsAvailable.Key()) {
		t.Fatalf("probe marker missing")
	}
	h.tr.Inject(protocol.EncodeResult(protocol.ErrorSuccess))
	if len(h.errs) != 1 || h.errs[0] != protocol.ErrorSuccess {
		t.Fatalf("unexpected error handler calls=%v", h.errs)
	}
	if h.eng.Phase() != PhaseIdle || h.clock.Pending() != 0 {
		t.Fatalf("engine not idle after probe")
	}

	h.errs = nil
	if err := h.eng.CheckIsAvailable(); err != nil {
		t.Fatalf("probe: %v", err)
	}
	h.untilSent()
	h.clock.Advance(10 * time.Second)
	if len(h.errs) != 1 || h.errs[0] != protocol.ErrorUnavailable {
		t.Fatalf("probe timeout not reported once: %v", h.errs)
	}
}

func TestSendFailureCompletesWithSendFailed(t *testing.T) {
	h := newHarness(t)
	h.tr.FailSend(errors.New("radio off"))
	var data dataRecorder
	if err := h.eng.GetData(protocol.DataGSMStrength, data.handle); err != nil {
		t.Fatalf("get data: %v", err)
	}
	if len(data.got) != 0 {
		t.Fatalf("send failure must be asynchronous")
	}
	h.untilSent()
	if len(data.got) != 1 || data.got[0].Err != protocol.ErrorSendFailed {
		t.Fatalf("unexpected results=%+v", data.got)
	}
	if h.eng.Phase() != PhaseIdle || h.clock.Pending() != 0 {
		t.Fatalf("engine not idle after send failure")
	}
}

func TestBeginFailureReturnsWrappedCause(t *testing.T) {
	h := newHarness(t)
	boom := errors.New("outbox unavailable")
	h.tr.FailBegin(boom)
	var feat featureRecorder
	err := h.eng.SetFeature(protocol.FeatureAutoSync, protocol.FeatureStateOn, feat.handle)
	if !errors.Is(err, ErrSendFailed) || !errors.Is(err, boom) {
		t.Fatalf("expected wrapped send failure, got %v", err)
	}
	if len(feat.got) != 1 || feat.got[0].Err != protocol.ErrorSendFailed {
		t.Fatalf("unexpected results=%+v", feat.got)
	}
	h.tr.FailBegin(nil)
	if err := h.eng.SetFeature(protocol.FeatureAutoSync, protocol.FeatureStateOn, nil); err != nil {
		t.Fatalf("slot not released after begin failure: %v", err)
	}
}

func TestHandlerMayIssueNextRequest(t *testing.T) {
	h := newHarness(t)
	var second featureRecorder
	var chainErr error
	err := h.eng.GetData(protocol.DataBatteryPercent, func(DataResult) {
		chainErr = h.eng.GetFeature(protocol.FeatureWifi, second.handle)
	})
	if err != nil {
		t.Fatalf("get data: %v", err)
	}
	h.eng.FakeGetDataResponse(protocol.DataBatteryPercent, 10, "")
	if chainErr != nil {
		t.Fatalf("re-entrant request rejected: %v", chainErr)
	}
	if h.eng.Phase() != PhaseSending {
		t.Fatalf("unexpected phase=%s", h.eng.Phase())
	}
	h.eng.FakeGetFeatureResponse(protocol.FeatureWifi, protocol.FeatureStateOn)
	if len(second.got) != 1 {
		t.Fatalf("chained request not completed")
	}
}

func TestFakeHooksIgnoredWithoutMatchingRequest(t *testing.T) {
	h := newHarness(t)
	h.eng.FakeError(protocol.ErrorNoPermission)
	h.eng.FakeGetDataResponse(protocol.DataBatteryPercent, 1, "")
	if len(h.errs) != 0 || h.eng.Phase() != PhaseIdle {
		t.Fatalf("fake with nothing outstanding had an effect: errs=%v", h.errs)
	}

	var data dataRecorder
	if err := h.eng.GetData(protocol.DataBatteryPercent, data.handle); err != nil {
		t.Fatalf("get data: %v", err)
	}
	h.eng.FakeSetFeatureResponse(protocol.FeatureWifi, protocol.FeatureStateOn)
	h.eng.FakeGetDataResponse(protocol.DataKind(0), 1, "")
	if len(data.got) != 0 {
		t.Fatalf("mismatched fake completed the request: %+v", data.got)
	}

	h.eng.FakeError(protocol.ErrorWrongVersion)
	if len(data.got) != 1 || data.got[0].Err != protocol.ErrorWrongVersion {
		t.Fatalf("unexpected results=%+v", data.got)
	}
	if len(h.errs) != 1 || h.errs[0] != protocol.ErrorWrongVersion {
		t.Fatalf("unexpected error handler calls=%v", h.errs)
	}
}

func TestFakeErrorOnProbeNotifiesOnce(t *testing.T) {
	h := newHarness(t)
	if err := h.eng.CheckIsAvailable(); err != nil {
		t.Fatalf("probe: %v", err)
	}
	h.eng.FakeError(protocol.ErrorUnavailable)
	if len(h.errs) != 1 || h.errs[0] != protocol.ErrorUnavailable {
		t.Fatalf("unexpected error handler calls=%v", h.errs)
	}
}

func TestFakeResponseWithOtherKindIsIgnored(t *testing.T) {
	h := newHarness(t)
	var data dataRecorder
	if err := h.eng.GetData(protocol.DataBatteryPercent, data.handle); err != nil {
		t.Fatalf("get data: %v", err)
	}
	h.eng.FakeGetDataResponse(protocol.DataWifiNetworkName, 0, "HomeNet")
	if len(data.got) != 0 || h.eng.Phase() == PhaseIdle {
		t.Fatalf("fake for another data kind completed the request: %+v", data.got)
	}
	h.eng.FakeGetDataResponse(protocol.DataBatteryPercent, 55, "")
	if len(data.got) != 1 || data.got[0].Value.Kind != data.got[0].Kind || data.got[0].Value.Int != 55 {
		t.Fatalf("unexpected results=%+v", data.got)
	}

	var feat featureRecorder
	if err := h.eng.GetFeature(protocol.FeatureWifi, feat.handle); err != nil {
		t.Fatalf("get feature: %v", err)
	}
	h.eng.FakeGetFeatureResponse(protocol.FeatureRinger, protocol.FeatureStateRingerSilent)
	if len(feat.got) != 0 {
		t.Fatalf("fake for another feature completed the request: %+v", feat.got)
	}
	h.eng.FakeGetFeatureResponse(protocol.FeatureWifi, protocol.FeatureStateOff)
	if len(feat.got) != 1 || feat.got[0].Kind != protocol.FeatureWifi || feat.got[0].State != protocol.FeatureStateOff {
		t.Fatalf("unexpected results=%+v", feat.got)
	}
	if len(h.errs) != 0 {
		t.Fatalf("unexpected error handler calls=%v", h.errs)
	}
}

func TestFakeErrorFollowsResultMarkerRules(t *testing.T) {
	h := newHarness(t)
	var feat featureRecorder
	if err := h.eng.GetFeature(protocol.FeatureWifi, feat.handle); err != nil {
		t.Fatalf("get feature: %v", err)
	}
	h.eng.FakeError(protocol.ErrorKind(42))
	if len(feat.got) != 0 || len(h.errs) != 0 {
		t.Fatalf("invalid code had an effect: got=%+v errs=%v", feat.got, h.errs)
	}

	h.eng.FakeError(protocol.ErrorSuccess)
	if len(feat.got) != 0 {
		t.Fatalf("success marker completed a typed request: %+v", feat.got)
	}
	if len(h.errs) != 1 || h.errs[0] != protocol.ErrorSuccess {
		t.Fatalf("unexpected error handler calls=%v", h.errs)
	}

	h.eng.FakeError(protocol.ErrorNoPermission)
	if len(feat.got) != 1 || feat.got[0].Err != protocol.ErrorNoPermission {
		t.Fatalf("unexpected results=%+v", feat.got)
	}
	if len(h.errs) != 2 || h.errs[1] != protocol.ErrorNoPermission {
		t.Fatalf("unexpected error handler calls=%v", h.errs)
	}
	if h.eng.Phase() != PhaseIdle {
		t.Fatalf("unexpected phase=%s", h.eng.Phase())
	}
}

func TestInitValidatesAndTruncatesName(t *testing.T) {
	h := newHarness(t)
	if err := h.eng.Init("   ", nil); !errors.Is(err, protocol.ErrInvalidAppName) {
		t.Fatalf("expected ErrInvalidAppName, got %v", err)
	}
	if err := h.eng.Init(strings.Repeat("w", 50), nil); err != nil {
		t.Fatalf("re-init: %v", err)
	}
	if err := h.eng.CheckIsAvailable(); err != nil {
		t.Fatalf("probe: %v", err)
	}
	h.untilSent()
	name, _ := h.tr.Sent()[0].Str(protocol.KeyAppName)
	if len(name) != protocol.MaxAppNameBytes {
		t.Fatalf("unexpected name length=%d", len(name))
	}
	// nil handler on re-init keeps the previous one
	h.tr.Inject(protocol.EncodeResult(protocol.ErrorSuccess))
	if len(h.errs) != 1 {
		t.Fatalf("previous error handler lost: %v", h.errs)
	}
}

func TestRequestLoggingHasNoProtocolEffect(t *testing.T) {
	h := newHarness(t)
	h.eng.SetRequestLogging(true)
	if err := h.eng.GetData(protocol.DataBatteryPercent, nil); err != nil {
		t.Fatalf("get data: %v", err)
	}
	h.untilSent()
	if d := h.tr.Sent()[0]; d.Len() != 5 {
		t.Fatalf("unexpected request fields=%v", d.Fields())
	}
}

func TestErrorFor(t *testing.T) {
	testlog.Start(t)
	if ErrorFor(protocol.ErrorSuccess) != nil {
		t.Fatalf("success must map to nil")
	}
	if !errors.Is(ErrorFor(protocol.ErrorNoPermission), ErrNoPermission) {
		t.Fatalf("unexpected mapping")
	}
	if !errors.Is(ErrorFor(protocol.ErrorKind(9)), protocol.ErrInvalidErrorKind) {
		t.Fatalf("unexpected mapping for out-of-range kind")
	}
}
