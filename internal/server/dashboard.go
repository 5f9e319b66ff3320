package server

// DashboardHTML is the embedded replay viewer. It lists sessions, asks the
// server to stream one, and draws the frames it receives over /ws.
const DashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Rewind Viewer</title>
<style>
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body {
    font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, monospace;
    background: #0d1117; color: #c9d1d9; padding: 20px;
  }
  h1 { color: #58a6ff; margin-bottom: 4px; font-size: 1.5em; }
  .subtitle { color: #8b949e; margin-bottom: 20px; font-size: 0.9em; }
  .layout { display: grid; grid-template-columns: 260px 1fr; gap: 16px; }
  .panel {
    background: #161b22; border: 1px solid #30363d; border-radius: 6px;
    padding: 12px;
  }
  .session { padding: 6px 8px; border-radius: 4px; cursor: pointer; font-size: 0.85em; }
  .session:hover { background: #1c2128; }
  .status-bar { display: flex; gap: 20px; margin-bottom: 12px; font-size: 0.85em; }
  .connected { color: #3fb950; }
  .disconnected { color: #f85149; }
  canvas { background: #010409; border: 1px solid #30363d; max-width: 100%; }
</style>
</head>
<body>
<h1>Rewind</h1>
<div class="subtitle">Recorded sessions replayed through the headless simulation</div>
<div class="layout">
  <div class="panel" id="sessions"></div>
  <div class="panel">
    <div class="status-bar">
      <span id="conn" class="disconnected">disconnected</span>
      <span id="session">no session</span>
      <span id="clock">t=0.000</span>
      <span id="keys"></span>
    </div>
    <canvas id="field" width="1024" height="768"></canvas>
  </div>
</div>
<script>
const field = document.getElementById('field');
const ctx = field.getContext('2d');

async function loadSessions() {
  const res = await fetch('/api/sessions');
  const list = await res.json();
  const el = document.getElementById('sessions');
  el.innerHTML = '';
  for (const s of list) {
    const row = document.createElement('div');
    row.className = 'session';
    row.textContent = s.name + ' (' + s.lines + ' lines)';
    row.onclick = () => fetch('/api/sessions/' + encodeURIComponent(s.name) + '/replay', { method: 'POST' });
    el.appendChild(row);
  }
}

function draw(frame) {
  ctx.clearRect(0, 0, field.width, field.height);
  for (const e of frame.entities || []) {
    if (!e.active) continue;
    ctx.fillStyle = e.kind === 'player' ? '#3fb950' : '#f85149';
    ctx.fillRect(e.x - 8, e.y - 8, 16, 16);
    if (e.kind === 'player') {
      ctx.fillText('hp ' + e.health + '  score ' + e.score, e.x + 12, e.y);
    }
  }
  document.getElementById('clock').textContent = 't=' + frame.elapsed.toFixed(3);
  document.getElementById('keys').textContent = (frame.pressed || []).join(' ');
}

function connect() {
  const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
  const conn = document.getElementById('conn');
  ws.onopen = () => { conn.textContent = 'connected'; conn.className = 'connected'; };
  ws.onclose = () => {
    conn.textContent = 'disconnected'; conn.className = 'disconnected';
    setTimeout(connect, 2000);
  };
  ws.onmessage = (ev) => {
    const msg = JSON.parse(ev.data);
    if (msg.type === 'start') {
      document.getElementById('session').textContent = msg.session;
      if (msg.header) { field.width = msg.header.w; field.height = msg.header.h; }
    } else if (msg.type === 'frame') {
      draw(msg.frame);
    }
  };
}

loadSessions();
connect();
</script>
</body>
</html>
`
