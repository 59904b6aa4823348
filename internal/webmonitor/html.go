package webmonitor

const indexHTML = `
<!DOCTYPE html>
<html>
<head>
    <title>Epilepsy Home Monitor</title>
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <link rel="stylesheet" href="/assets/monitor.css">
    <style>
        body { font-family: system-ui, sans-serif; margin: 0; background: #f4f6f8; color: #222; }
        .header { display: flex; justify-content: space-between; align-items: center; padding: 12px 20px; background: #1f2937; color: #fff; }
        .badge { padding: 4px 10px; border-radius: 12px; font-size: 13px; background: #6b7280; }
        .badge.normal { background: #16a34a; }
        .badge.episode { background: #dc2626; }
        .badge.invalid { background: #d97706; }
        .badge.unavailable { background: #6b7280; }
        .tabs { display: flex; gap: 4px; padding: 8px 20px 0; }
        .tabs button { border: none; padding: 8px 14px; border-radius: 6px 6px 0 0; cursor: pointer; background: #e5e7eb; }
        .tabs button.active { background: #fff; font-weight: 600; }
        .tab { display: none; padding: 16px 20px; background: #fff; margin: 0 20px 20px; }
        .tab.active { display: block; }
        .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(180px, 1fr)); gap: 12px; }
        .stat { padding: 12px; border: 1px solid #e5e7eb; border-radius: 8px; }
        .stat-label { display: block; font-size: 12px; color: #6b7280; }
        .stat-value { display: block; font-size: 24px; font-weight: 600; }
        .stat-sub { display: block; font-size: 12px; color: #6b7280; }
        .alert { padding: 10px; border-radius: 6px; margin: 10px 0; display: none; background: #fee2e2; color: #991b1b; }
        .muted { color: #6b7280; }
        table.calendar { border-collapse: collapse; }
        table.calendar td, table.calendar th { width: 40px; height: 32px; text-align: center; border: 1px solid #e5e7eb; }
        table.calendar td.flagged { background: #fecaca; font-weight: 600; }
        .room.motion { border-color: #f59e0b; }
        .room.here { outline: 2px solid #3b82f6; }
        form label { display: block; margin: 6px 0; }
    </style>
</head>
<body>
    <div class="header">
        <div class="title">Epilepsy Home Monitor</div>
        <div>
            <span class="badge" id="mode-badge">--</span>
            <span class="badge unavailable" id="status-badge">Waiting for data...</span>
        </div>
    </div>

    <div class="tabs" id="tabs">
        <button type="button" data-tab="realtime" class="active">Real-time</button>
        <button type="button" data-tab="rooms">Rooms</button>
        <button type="button" data-tab="camera">Camera</button>
        <button type="button" data-tab="environment">Environment</button>
        <button type="button" data-tab="calendar">Calendar</button>
        <button type="button" data-tab="settings">Settings</button>
    </div>

    <div class="tab active" id="tab-realtime">
        <div class="alert" id="episode-alert"></div>
        <div class="grid">
            <div class="stat">
                <span class="stat-label">Heart Rate</span>
                <span class="stat-value" id="hr">--</span>
                <span class="stat-sub" id="hr-delta">BPM</span>
            </div>
            <div class="stat">
                <span class="stat-label">Episode Probability</span>
                <span class="stat-value" id="prob">--</span>
                <span class="stat-sub" id="thresholds">--</span>
            </div>
            <div class="stat">
                <span class="stat-label">Average (last 100)</span>
                <span class="stat-value" id="mean">--</span>
                <span class="stat-sub" id="range">--</span>
            </div>
            <div class="stat">
                <span class="stat-label">Episodes Today</span>
                <span class="stat-value" id="episodes-today">0</span>
                <span class="stat-sub" id="location">--</span>
            </div>
        </div>
        <img id="chart" alt="Heart rate chart" style="width:100%;max-width:800px;margin-top:12px;">
    </div>

    <div class="tab" id="tab-rooms">
        <div class="grid" id="rooms"></div>
        <div class="grid" id="room-widgets" style="margin-top:12px;"></div>
    </div>

    <div class="tab" id="tab-camera">
        <img id="stream" alt="Camera feed" style="width:100%;max-width:640px;">
        <div style="margin-top:12px;">
            <button id="record-btn">Record</button>
            <span id="record-info" class="muted"></span>
        </div>
    </div>

    <div class="tab" id="tab-environment">
        <div class="grid" id="environment"></div>
    </div>

    <div class="tab" id="tab-calendar">
        <h3 id="calendar-title"></h3>
        <table class="calendar" id="calendar"></table>
        <h3>Episode History</h3>
        <div id="episodes"><p class="muted">No episodes detected yet</p></div>
    </div>

    <div class="tab" id="tab-settings">
        <p class="muted" id="settings-thresholds"></p>
        <form id="settings-form">
            <fieldset>
                <legend>Alerts</legend>
                <label><input type="checkbox" name="alerts.sms"> SMS notifications</label>
                <label><input type="checkbox" name="alerts.email"> Email alerts</label>
                <label><input type="checkbox" name="alerts.camera"> Camera alerts</label>
                <label><input type="checkbox" name="alerts.motion"> Motion alerts</label>
                <label><input type="checkbox" name="alerts.smart_light"> Smart light alerts</label>
            </fieldset>
            <fieldset>
                <legend>Emergency Contacts</legend>
                <label>Primary caregiver <input name="contacts.primary_name"></label>
                <label>Primary phone <input name="contacts.primary_phone"></label>
                <label>Healthcare provider email <input name="contacts.provider_email"></label>
                <label>Secondary contact <input name="contacts.secondary_name"></label>
                <label>Secondary phone <input name="contacts.secondary_phone"></label>
                <label>Hospital emergency number <input name="contacts.hospital_number"></label>
            </fieldset>
            <fieldset>
                <legend>Camera</legend>
                <label>Recording quality
                    <select name="camera.recording_quality">
                        <option>Low</option><option>Medium</option><option>High</option><option>Ultra</option>
                    </select>
                </label>
                <label>Recording duration (minutes) <input type="number" min="1" max="60" name="camera.recording_minutes"></label>
                <label>Detection sensitivity <input type="range" min="0" max="100" name="camera.detection_sensitivity"></label>
            </fieldset>
            <button type="submit">Save</button>
            <span id="settings-result" class="muted"></span>
        </form>
    </div>

    <script>
        const $ = (id) => document.getElementById(id);
        let settings = null;

        document.querySelectorAll('#tabs button').forEach((btn) => {
            btn.addEventListener('click', () => {
                document.querySelectorAll('#tabs button').forEach((b) => b.classList.remove('active'));
                document.querySelectorAll('.tab').forEach((t) => t.classList.remove('active'));
                btn.classList.add('active');
                $('tab-' + btn.dataset.tab).classList.add('active');
                // Opening the camera tab subscribes to the MJPEG stream, leaving it unsubscribes
                $('stream').src = btn.dataset.tab === 'camera' ? '/stream?t=' + Date.now() : '';
                refresh(btn.dataset.tab);
            });
        });

        function applyTick(tick) {
            const badge = $('status-badge');
            badge.className = 'badge ' + tick.status;
            badge.textContent = tick.status;
            $('mode-badge').textContent = tick.simulation ? 'Simulation' : 'Sensor';
            if (tick.reading) {
                $('hr').textContent = tick.reading.heart_rate.toFixed(1);
            }
            $('prob').textContent = tick.decision ? (tick.decision.probability * 100).toFixed(0) + '%' : '--';
            $('location').textContent = 'Last seen: ' + tick.rooms.last_location;
            const alert = $('episode-alert');
            if (tick.status === 'episode') {
                alert.style.display = 'block';
                alert.textContent = 'Possible episode detected at ' + tick.reading.heart_rate.toFixed(1) +
                    ' BPM in ' + tick.episode.location;
            } else {
                alert.style.display = 'none';
            }
        }

        async function refreshStatus() {
            const s = await (await fetch('/api/status')).json();
            $('mean').textContent = s.stats.count ? s.stats.mean.toFixed(1) : '--';
            $('range').textContent = s.stats.count ? s.stats.min.toFixed(0) + ' - ' + s.stats.max.toFixed(0) : '--';
            $('episodes-today').textContent = s.episodes_today;
            $('thresholds').textContent = 'alert above ' + s.thresholds.probability * 100 + '% or ' + s.thresholds.heart_rate + ' BPM';
            $('chart').src = '/api/chart.png?t=' + Date.now();
        }

        function tile(label, value, delta) {
            return '<div class="stat"><span class="stat-label">' + label + '</span><span class="stat-value">' +
                value + '</span><span class="stat-sub">' + delta + '</span></div>';
        }

        async function refreshRooms() {
            const r = await (await fetch('/api/rooms')).json();
            $('rooms').innerHTML = r.rooms.map((room) =>
                '<div class="stat room' + (room.motion ? ' motion' : '') + (room.room === r.last_location ? ' here' : '') + '">' +
                '<span class="stat-label">' + room.room + '</span><span class="stat-value">' +
                (room.motion ? 'Motion' : 'Still') + '</span></div>').join('');
            $('room-widgets').innerHTML = r.widgets.map((w) => tile(w.label, w.value, w.delta)).join('');
        }

        async function refreshEnvironment() {
            const e = await (await fetch('/api/environment')).json();
            $('environment').innerHTML = [e.temperature, e.humidity, e.co2, e.air_quality, e.voc]
                .map((m) => tile(m.label, m.value, m.delta)).join('') +
                tile('Lighting', e.lighting.main_light, 'night light ' + e.lighting.night_light);
        }

        async function refreshCalendar() {
            const c = await (await fetch('/api/calendar')).json();
            $('calendar-title').textContent = c.month_name + ' ' + c.year;
            let html = '<tr>' + c.weekdays.map((d) => '<th>' + d + '</th>').join('') + '</tr>';
            for (const week of c.weeks) {
                html += '<tr>' + week.map((d) => '<td class="' + (d.flagged ? 'flagged' : '') + '">' +
                    (d.day || '') + '</td>').join('') + '</tr>';
            }
            $('calendar').innerHTML = html;

            const eps = await (await fetch('/api/episodes')).json();
            if (eps.episodes.length) {
                $('episodes').innerHTML = eps.episodes.map((ep) =>
                    '<p>Episode at ' + new Date(ep.timestamp).toLocaleString() + ' (' + ep.age + '), ' +
                    ep.heart_rate.toFixed(1) + ' BPM, location: ' + ep.location + '</p>').join('');
            }
        }

        async function refreshRecording() {
            const st = await (await fetch('/api/recording/status')).json();
            $('record-btn').textContent = st.recording ? 'Stop' : 'Record';
            $('record-info').textContent = st.filename ? st.filename + ' (' + st.frame_count + ' frames)' : '';
        }

        function fillForm(obj, prefix) {
            for (const [key, value] of Object.entries(obj)) {
                const name = prefix + key;
                if (value !== null && typeof value === 'object' && !Array.isArray(value)) {
                    fillForm(value, name + '.');
                    continue;
                }
                const input = document.querySelector('[name="' + name + '"]');
                if (!input) continue;
                if (input.type === 'checkbox') input.checked = value; else input.value = value;
            }
        }

        async function refreshSettings() {
            const s = await (await fetch('/api/settings')).json();
            settings = s.settings;
            fillForm(settings, '');
            $('settings-thresholds').textContent = 'Detector thresholds (fixed): probability > ' +
                s.thresholds.probability + ', heart rate > ' + s.thresholds.heart_rate + ' BPM';
        }

        $('settings-form').addEventListener('submit', async (ev) => {
            ev.preventDefault();
            const next = JSON.parse(JSON.stringify(settings));
            for (const input of ev.target.querySelectorAll('[name]')) {
                const [group, key] = input.name.split('.');
                if (input.type === 'checkbox') next[group][key] = input.checked;
                else if (input.type === 'number' || input.type === 'range') next[group][key] = Number(input.value);
                else next[group][key] = input.value;
            }
            const resp = await fetch('/api/settings', { method: 'POST', body: JSON.stringify(next) });
            const body = await resp.json();
            $('settings-result').textContent = resp.ok ? 'Saved' : body.error;
        });

        $('record-btn').addEventListener('click', async () => {
            const st = await (await fetch('/api/recording/status')).json();
            await fetch(st.recording ? '/api/recording/stop' : '/api/recording/start', { method: 'POST' });
            refreshRecording();
        });

        function refresh(tab) {
            const handlers = {
                realtime: refreshStatus,
                rooms: refreshRooms,
                camera: refreshRecording,
                environment: refreshEnvironment,
                calendar: refreshCalendar,
                settings: refreshSettings,
            };
            (handlers[tab] || refreshStatus)().catch((err) => console.error('[App] refresh failed', err));
        }

        const events = new EventSource('/api/status/stream');
        events.onmessage = (ev) => {
            const tick = JSON.parse(ev.data);
            applyTick(tick);
            const active = document.querySelector('#tabs button.active').dataset.tab;
            if (active === 'realtime' || active === 'rooms') refresh(active);
        };
        events.onerror = () => {
            $('status-badge').className = 'badge unavailable';
            $('status-badge').textContent = 'Disconnected';
        };

        refresh('realtime');
    </script>
</body>
</html>
`
