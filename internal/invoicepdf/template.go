package invoicepdf

const receiptTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8"/>
<title>Facture Orange Money - {{.Reference}}</title>
<style>
body { font-family: Arial, sans-serif; margin: 0; padding: 20px; }
.header { display: flex; justify-content: space-between; align-items: center; border-bottom: 2px solid #2879b9; padding-bottom: 20px; margin-bottom: 30px; }
.company-logo img { max-width: 180px; max-height: 120px; object-fit: contain; }
.invoice-info { background-color: #f8f9fa; padding: 15px; border-radius: 5px; margin-bottom: 20px; }
.table { width: 100%; border-collapse: collapse; margin-bottom: 20px; }
.table th, .table td { border: 1px solid #dee2e6; padding: 8px; text-align: left; }
.table th { background-color: #2879b9; color: white; }
.total { font-size: 18px; font-weight: bold; text-align: right; margin-top: 20px; }
.footer { margin-top: 40px; text-align: center; font-size: 12px; color: #6c757d; }
.status-success { color: #28a745; font-weight: bold; }
.brand { color: #2879b9; font-weight: bold; }
</style>
</head>
<body>
<div class="header">
  <div>
    <h2 class="brand" style="margin: 0;">FACTURE DE PAIEMENT</h2>
    <h3 style="margin: 5px 0 0;">Référence: {{.Reference}}</h3>
  </div>
  {{if .Company.LogoURL}}<div class="company-logo"><img src="{{.Company.LogoURL}}" alt="{{.Company.Name}}"/></div>{{end}}
</div>

<div class="company-info">
  <h3 class="brand">{{.Company.Name}}</h3>
  <p><strong>Adresse:</strong> {{.Company.Address}}</p>
  <p><strong>Ville:</strong> {{.Company.City}}, {{.Company.Country}}</p>
  <p><strong>Téléphone:</strong> {{.Company.Phone}}</p>
  <p><strong>Email:</strong> {{.Company.Email}}</p>
  <p><strong>Site Web:</strong> {{.Company.Website}}</p>
</div>

<div class="invoice-info">
  <h3>Informations de la facture</h3>
  <p><strong>Numéro de facture:</strong> {{.Number}}</p>
  <p><strong>Date de paiement:</strong> {{.PaidAt}}</p>
  <p><strong>Statut:</strong> <span class="status-success">PAYÉ</span></p>
  <p><strong>Mode de paiement:</strong> Orange Money</p>
</div>

<div class="transaction-details">
  <h3>Détails de la transaction</h3>
  <table class="table">
    <tr><th>Transaction ID</th><td>{{.TransactionID}}</td></tr>
    <tr><th>Orange ID</th><td>{{.OrangeID}}</td></tr>
    <tr><th>Téléphone</th><td>{{or .Phone "N/A"}}</td></tr>
    <tr><th>Description</th><td>{{or .Description "Paiement via Orange Money"}}</td></tr>
    {{- if .InvoiceName}}
    <tr><th>Facture liée</th><td>{{.InvoiceName}}</td></tr>
    {{- end}}
    {{- if .ClientName}}
    <tr><th>Client</th><td>{{.ClientName}}</td></tr>
    <tr><th>Email Client</th><td>{{or .ClientEmail "N/A"}}</td></tr>
    {{- end}}
  </table>
</div>

<div class="total">
  <p>MONTANT TOTAL PAYÉ: <span class="brand">{{.Total}}</span></p>
</div>

<div class="footer">
  <p><strong class="brand">{{.Company.Name}}</strong></p>
  <p style="margin-top: 15px;">
    <strong>Contacts:</strong> {{.Company.Phone}}<br>
    <strong>Email:</strong> {{.Company.Email}} | <strong>Web:</strong> {{.Company.Website}}
  </p>
</div>
</body>
</html>
`
