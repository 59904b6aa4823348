package notify

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	titles   []string
	messages []string
	err      error
}

func (r *recorder) Notify(title, message string) error {
	r.titles = append(r.titles, title)
	r.messages = append(r.messages, message)
	return r.err
}

func TestMultiDeliversToAll(t *testing.T) {
	failing := &recorder{err: errors.New("no display")}
	ok := &recorder{}

	err := Multi{failing, ok}.Notify("Epilepsy Warning", "hr")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no display")
	assert.Len(t, failing.titles, 1)
	assert.Len(t, ok.titles, 1)

	assert.NoError(t, Multi{ok}.Notify("a", "b"))
}

func TestDebounceDropsWithinWindow(t *testing.T) {
	rec := &recorder{}
	d := Debounce(rec, 30*time.Second)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }

	require.NoError(t, d.Notify("t", "first"))
	require.NoError(t, d.Notify("t", "second"))
	now = now.Add(10 * time.Second)
	require.NoError(t, d.Notify("t", "third"))

	assert.Equal(t, []string{"first"}, rec.messages)
	assert.Equal(t, int64(2), d.Dropped())

	now = now.Add(21 * time.Second)
	require.NoError(t, d.Notify("t", "fourth"))
	assert.Equal(t, []string{"first", "fourth"}, rec.messages)
}

func TestDebounceZeroWindowForwardsAll(t *testing.T) {
	rec := &recorder{}
	d := Debounce(rec, 0)
	for i := 0; i < 5; i++ {
		require.NoError(t, d.Notify("t", "m"))
	}
	assert.Len(t, rec.messages, 5)
}

func TestDesktopWrapsError(t *testing.T) {
	d := NewDesktop("")
	var gotTitle string
	d.send = func(title, message, icon string) error {
		gotTitle = title
		return errors.New("dbus unavailable")
	}

	err := d.Notify("Epilepsy Warning", "msg")
	require.Error(t, err)
	assert.Equal(t, "Epilepsy Warning", gotTitle)
	assert.Contains(t, err.Error(), "desktop notification")
}

type fakePublisher struct {
	topic   string
	qos     byte
	payload []byte
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
	p.topic, p.qos, p.payload = topic, qos, payload
	return nil
}

func TestMQTTPublishesJSONAlert(t *testing.T) {
	pub := &fakePublisher{}
	m := NewMQTT(pub, "home/epilepsy/alerts", 1)
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return ts }

	require.NoError(t, m.Notify("Epilepsy Warning", "Abnormal heart rate detected: 170 BPM"))
	assert.Equal(t, "home/epilepsy/alerts", pub.topic)
	assert.Equal(t, byte(1), pub.qos)

	var alert Alert
	require.NoError(t, json.Unmarshal(pub.payload, &alert))
	assert.Equal(t, "Epilepsy Warning", alert.Title)
	assert.True(t, ts.Equal(alert.Timestamp))
	m.Close()
}

func TestLogNeverFails(t *testing.T) {
	assert.NoError(t, Log{}.Notify("title", "line one\nline two"))
}
