package exporter

// DefaultStylesheet is the built-in CSS for exported documents, including the
// belt badge palette and the dark theme overrides.
const DefaultStylesheet = `
    body {
      font-family: Inter, -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif;
      line-height: 1.6;
      max-width: 1200px;
      margin: 0 auto;
      padding: 20px;
      background-color: #ffffff;
      color: #1a1a1a;
    }
    .header {
      text-align: center;
      margin-bottom: 40px;
      padding-bottom: 20px;
      border-bottom: 2px solid #e5e5e5;
    }
    .profile-card {
      background: #f8f9fa;
      border: 1px solid #e5e5e5;
      border-radius: 8px;
      padding: 24px;
      margin-bottom: 24px;
      box-shadow: 0 2px 4px rgba(0,0,0,0.1);
    }
    .profile-header {
      display: flex;
      align-items: center;
      margin-bottom: 16px;
      gap: 16px;
    }
    .profile-avatar {
      width: 80px;
      height: 80px;
      border-radius: 50%;
      background: #dc2626;
      color: white;
      display: flex;
      align-items: center;
      justify-content: center;
      font-size: 24px;
      font-weight: bold;
    }
    .profile-info h2 {
      margin: 0 0 8px 0;
      color: #1a1a1a;
    }
    .belt-badge {
      display: inline-block;
      padding: 4px 12px;
      border-radius: 16px;
      font-size: 12px;
      font-weight: 600;
      text-transform: uppercase;
      letter-spacing: 0.5px;
    }
    .belt-white { background: #f8f9fa; color: #1a1a1a; border: 1px solid #dee2e6; }
    .belt-blue { background: #3b82f6; color: white; }
    .belt-purple { background: #8b5cf6; color: white; }
    .belt-brown { background: #a16207; color: white; }
    .belt-black { background: #1a1a1a; color: white; }
    .belt-coral { background: #f87171; color: #1a1a1a; }
    .belt-red { background: #b91c1c; color: white; }
    .stats-grid {
      display: grid;
      grid-template-columns: repeat(auto-fit, minmax(120px, 1fr));
      gap: 16px;
      margin: 16px 0;
    }
    .stat-item {
      text-align: center;
      padding: 12px;
      background: white;
      border-radius: 6px;
      border: 1px solid #e5e5e5;
    }
    .stat-value {
      font-size: 20px;
      font-weight: bold;
      color: #dc2626;
      display: block;
    }
    .stat-label {
      font-size: 12px;
      color: #6b7280;
      text-transform: uppercase;
      letter-spacing: 0.5px;
    }
    .bio-section {
      margin-top: 16px;
      padding-top: 16px;
      border-top: 1px solid #e5e5e5;
    }
    .community-grid {
      display: grid;
      grid-template-columns: repeat(auto-fit, minmax(300px, 1fr));
      gap: 24px;
    }
    .export-date {
      text-align: center;
      margin-top: 40px;
      padding-top: 20px;
      border-top: 1px solid #e5e5e5;
      color: #6b7280;
      font-size: 14px;
    }
    .table {
      width: 100%;
      border-collapse: collapse;
      margin: 20px 0;
    }
    .table th, .table td {
      padding: 12px;
      text-align: left;
      border-bottom: 1px solid #e5e5e5;
    }
    .table th {
      background: #f8f9fa;
      font-weight: 600;
      color: #374151;
    }
    @media (max-width: 768px) {
      body { padding: 10px; }
      .profile-header { flex-direction: column; text-align: center; }
      .stats-grid { grid-template-columns: repeat(2, 1fr); }
      .community-grid { grid-template-columns: 1fr; }
    }
    /* Dark theme styles */
    .dark-theme {
      background-color: #0f0f0f;
      color: #e5e5e5;
    }
    .dark-theme .profile-card {
      background: #1a1a1a;
      border-color: #333;
    }
    .dark-theme .profile-info h2 {
      color: #e5e5e5;
    }
    .dark-theme .stat-item {
      background: #1a1a1a;
      border-color: #333;
    }
    .dark-theme .table th {
      background: #1a1a1a;
      color: #e5e5e5;
    }
`
