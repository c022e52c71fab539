package scraper

const landingHTML = `<html><body>
<a href="/public/jsp/processos/consulta_processo.jsf">Consultar Processos</a>
</body></html>`

const searchHTML = `<html><body><form>
<input id="form:RADICAL_PROTOCOLO"><input id="form:NUM_PROTOCOLO">
<input id="form:ANO_PROTOCOLO"><input id="form:DV_PROTOCOLO">
<input type="submit" value="Consultar">
</form></body></html>`

const resultsHTML = `<html><body><table><tr>
<td>23068.123456/2023-99</td>
<td><a title="Visualizar Processo" href="#"><img src="lupa.png"></a></td>
</tr></table></body></html>`

const emptyResultsHTML = `<html><body><div class="info">Nenhum processo encontrado.</div></body></html>`

const strangeResultsHTML = `<html><body><h1>Sessão expirada</h1></body></html>`

// detailHTML mirrors the portal layout: label/value rows, a merged cell,
// tables titled by caption, by title row and by a preceding heading.
const detailHTML = `<html><body>
<table class="visualizacao">
  <tr><th>Processo:</th><td>23068.123456/2023-99</td></tr>
  <tr><th>Status:</th><td>ATIVO</td></tr>
  <tr><th>Unidade de Origem:</th><td>PRÓ-REITORIA DE ADMINISTRAÇÃO</td></tr>
  <tr><th>Assunto do Processo:</th><td>010.01 - AQUISIÇÃO DE BENS</td></tr>
  <tr><td colspan="2">Assunto Detalhado: Aquisição de notebooks para laboratórios</td></tr>
</table>
<p>Observação: Urgência na tramitação</p>

<table>
  <caption>Interessados deste Processo</caption>
  <tr><th>Tipo</th><th>Identificação</th></tr>
  <tr><td>Servidor</td><td>MARIA DA SILVA</td></tr>
</table>

<table>
  <thead><tr><td colspan="6">Documentos do Processo</td></tr>
  <tr><th>Ordem</th><th>Tipo</th><th>Data</th><th>Unidade Origem</th><th>Natureza</th><th>Visualizar</th></tr></thead>
  <tbody>
  <tr><td>1</td><td>OFÍCIO</td><td>10/03/2023</td><td>PRAD</td><td>OSTENSIVO</td>
      <td><a href="#" onclick="window.open('/sipac/verArquivo?id=777&key=abc','_blank')">ver</a></td></tr>
  </tbody>
</table>

<h4>Movimentações do Processo</h4>
<table>
  <tr><th>Data Envio</th><th>Unidade de Origem</th><th>Unidade de Destino</th><th>Enviado Por</th><th>Data Recebimento</th><th>Recebido Por</th><th>Urgente</th></tr>
  <tr><td>11/03/2023</td><td>PRAD</td><td>DIVISÃO DE COMPRAS</td><td>JOAO</td><td>12/03/2023</td><td>ANA</td><td>Sim</td></tr>
</table>
</body></html>`
