package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/guregu/null/v5"

	"ohlcv-pipeline/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func date(day int) time.Time {
	return time.Date(2026, 3, day, 0, 0, 0, 0, time.UTC)
}

func rawBar(ticker string, day, hour int, close float64) model.RawBar {
	return model.RawBar{
		Timestamp:  time.Date(2026, 3, day, hour, 0, 0, 0, time.UTC),
		Ticker:     ticker,
		Open:       close,
		High:       close + 1,
		Low:        close - 1,
		Close:      close,
		Volume:     100,
		IngestedAt: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
	}
}

func TestAppendRaw_DedupWithinBatchAndAgainstStore(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	res, err := s.AppendRaw(ctx, []model.RawBar{
		rawBar("AAA", 2, 14, 10),
		rawBar("AAA", 2, 14, 10), // duplicate within batch
		rawBar("AAA", 3, 14, 11),
		rawBar("BBB", 2, 14, 50), // same timestamp, different ticker
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Inserted != 3 || res.Duplicates != 1 {
		t.Fatalf("first append: %+v, want 3 inserted / 1 duplicate", res)
	}

	// Re-fetch overlapping the stored range plus one new bar.
	res, err = s.AppendRaw(ctx, []model.RawBar{
		rawBar("AAA", 3, 14, 99), // existing key: dropped, stored value kept
		rawBar("AAA", 4, 14, 12),
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Inserted != 1 || res.Duplicates != 1 {
		t.Fatalf("second append: %+v, want 1 inserted / 1 duplicate", res)
	}

	bars, err := s.ReadRaw(ctx, "AAA", time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(bars) != 3 {
		t.Fatalf("AAA rows=%d, want 3", len(bars))
	}
	if bars[1].Close != 11 {
		t.Errorf("stored close=%v, want 11 (first write wins)", bars[1].Close)
	}
	if !bars[0].IngestedAt.Equal(rawBar("AAA", 2, 14, 10).IngestedAt) {
		t.Errorf("ingested_at round trip: %v", bars[0].IngestedAt)
	}
}

func TestAppendRaw_Empty(t *testing.T) {
	s := newTestStore(t)
	res, err := s.AppendRaw(context.Background(), nil)
	if err != nil || res.Inserted != 0 {
		t.Fatalf("empty append: %+v %v", res, err)
	}
}

func TestMaxTimestampAndReadRawFrom(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, ok, err := s.MaxTimestamp(ctx, "AAA"); err != nil || ok {
		t.Fatalf("empty store: ok=%v err=%v", ok, err)
	}

	s.AppendRaw(ctx, []model.RawBar{rawBar("AAA", 2, 14, 1), rawBar("AAA", 5, 20, 2), rawBar("AAA", 3, 9, 3)})

	ts, ok, err := s.MaxTimestamp(ctx, "AAA")
	if err != nil || !ok {
		t.Fatalf("max ts: ok=%v err=%v", ok, err)
	}
	if !ts.Equal(time.Date(2026, 3, 5, 20, 0, 0, 0, time.UTC)) {
		t.Errorf("max ts=%v", ts)
	}

	bars, err := s.ReadRaw(ctx, "AAA", date(3))
	if err != nil {
		t.Fatal(err)
	}
	if len(bars) != 2 || bars[0].Close != 3 || bars[1].Close != 2 {
		t.Fatalf("ReadRaw from 03-03: %+v", bars)
	}

	tickers, err := s.RawTickers(ctx)
	if err != nil || len(tickers) != 1 || tickers[0] != "AAA" {
		t.Fatalf("tickers=%v err=%v", tickers, err)
	}

	wm, err := s.BronzeWatermark(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if d, _ := wm.For("AAA"); !d.Equal(date(5)) {
		t.Errorf("bronze watermark=%v", d)
	}
}

func silverRow(ticker string, day int, close float64) model.DailyBar {
	return model.DailyBar{
		TradeDate:  date(day),
		Ticker:     ticker,
		Open:       close,
		High:       close,
		Low:        close,
		Close:      close,
		Volume:     10,
		IngestedAt: time.Date(2026, 3, 10, 1, 2, 3, 0, time.UTC),
	}
}

func TestUpsertSilver_InsertThenUpdate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	wm, err := s.SilverWatermark(ctx)
	if err != nil || !wm.IsEmpty() {
		t.Fatalf("fresh store watermark=%v err=%v", wm, err)
	}

	first := []model.DailyBar{silverRow("AAA", 2, 10), silverRow("AAA", 3, 11)}
	res, err := s.UpsertSilver(ctx, first)
	if err != nil {
		t.Fatal(err)
	}
	if res.Inserted != 2 || res.Updated != 0 {
		t.Fatalf("first merge: %+v", res)
	}

	corrected := silverRow("AAA", 3, 12)
	corrected.EMA12 = null.FloatFrom(11.5)
	res, err = s.UpsertSilver(ctx, []model.DailyBar{corrected, silverRow("AAA", 4, 13)})
	if err != nil {
		t.Fatal(err)
	}
	if res.Inserted != 1 || res.Updated != 1 {
		t.Fatalf("second merge: %+v, want 1 inserted / 1 updated", res)
	}

	rows, err := s.ReadSilver(ctx, "AAA", time.Time{}, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows=%d, want 3", len(rows))
	}
	if rows[1].Close != 12 || !rows[1].EMA12.Valid || rows[1].EMA12.Float64 != 11.5 {
		t.Errorf("updated row not rewritten: %+v", rows[1])
	}
	if rows[0].EMA12.Valid {
		t.Error("null indicator should round-trip as null")
	}

	window, err := s.ReadSilver(ctx, "AAA", date(3), date(4))
	if err != nil {
		t.Fatal(err)
	}
	if len(window) != 1 || !window[0].TradeDate.Equal(date(3)) {
		t.Fatalf("half-open range read: %+v", window)
	}

	wm, err = s.SilverWatermark(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if wm.State() != model.StateAdvancing || !wm.Max().Equal(date(4)) {
		t.Fatalf("watermark=%v", wm)
	}
}

func TestInsertGold_NeverOverwrites(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	g := model.GoldRow{DailyBar: silverRow("AAA", 2, 10), RSI14: null.FloatFrom(55), CumulativeReturn: 0.1}
	res, err := s.InsertGold(ctx, []model.GoldRow{g})
	if err != nil || res.Inserted != 1 {
		t.Fatalf("insert: %+v %v", res, err)
	}

	changed := g
	changed.Close = 999
	res, err = s.InsertGold(ctx, []model.GoldRow{changed})
	if err != nil {
		t.Fatal(err)
	}
	if res.Inserted != 0 {
		t.Fatalf("re-insert counted %d rows", res.Inserted)
	}

	rows, err := s.ReadGold(ctx, nil, time.Time{}, time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Close != 10 {
		t.Fatalf("gold row overwritten: %+v", rows)
	}
	if rows[0].RSI14.Float64 != 55 || rows[0].MA50.Valid {
		t.Errorf("indicator round trip: %+v", rows[0])
	}
}

func TestReadGold_FiltersTickersAndDates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var rows []model.GoldRow
	for _, tk := range []string{"AAA", "BBB", "CCC"} {
		for day := 1; day <= 5; day++ {
			rows = append(rows, model.GoldRow{DailyBar: silverRow(tk, day, float64(day))})
		}
	}
	if _, err := s.InsertGold(ctx, rows); err != nil {
		t.Fatal(err)
	}

	got, err := s.ReadGold(ctx, []string{"CCC", "AAA"}, date(2), date(4))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 6 {
		t.Fatalf("rows=%d, want 6", len(got))
	}
	if got[0].Ticker != "AAA" || got[5].Ticker != "CCC" || !got[2].TradeDate.Equal(date(4)) {
		t.Fatalf("ordering wrong: %s %s %v", got[0].Key(), got[5].Key(), got[2].TradeDate)
	}
}

func TestResetAll(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.UpsertSilver(ctx, []model.DailyBar{silverRow("AAA", 2, 1)})
	s.InsertGold(ctx, []model.GoldRow{{DailyBar: silverRow("AAA", 2, 1)}})
	s.AppendRaw(ctx, []model.RawBar{rawBar("AAA", 2, 14, 1)})

	if err := s.ResetAll(ctx); err != nil {
		t.Fatal(err)
	}
	counts, err := s.Counts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts[model.StageSilver] != 0 || counts[model.StageGold] != 0 {
		t.Fatalf("counts after reset: %v", counts)
	}
	if counts[model.StageBronze] != 1 {
		t.Fatalf("bronze must survive a reset: %v", counts)
	}
}
